// Package transport moves rawhttp messages over TCP: a one-shot client and
// a concurrent listener that answers each connection with a Handler.
package transport

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
	"github.com/DimaGolomozy/rawhttp/internal/rawhttp"
)

// Client sends single requests, one connection per request.
type Client struct {
	// ConnectTimeout bounds dialing. Zero means no limit beyond ctx.
	ConnectTimeout time.Duration
}

// Send connects to the address named by req, writes it, and reads back one
// response. The body is read completely before the connection is closed.
func (c *Client) Send(ctx context.Context, req *rawhttp.Request) (*rawhttp.Response, error) {
	addr, err := req.Address()
	if err != nil {
		return nil, errcode.New(errcode.InvalidHTTPRequest, err)
	}

	d := net.Dialer{Timeout: c.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errcode.New(errcode.IOException, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := rawhttp.WriteRequest(conn, req); err != nil {
		return nil, err
	}

	res, err := rawhttp.ReadResponse(bufio.NewReader(conn), req.Method)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Package sender performs the single request/response exchange of send mode.
package sender

import (
	"context"
	"errors"
	"io"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
	"github.com/DimaGolomozy/rawhttp/internal/rawhttp"
)

// Transport sends a request and returns the response it got back.
type Transport interface {
	Send(ctx context.Context, req *rawhttp.Request) (*rawhttp.Response, error)
}

// Sender sends one request and copies the raw response to Out.
type Sender struct {
	Transport Transport
	Out       io.Writer
}

// Send performs exactly one exchange, without retrying, and writes the
// response to Out as received. Transport failures that carry no category of
// their own are reported as IOException.
func (s *Sender) Send(ctx context.Context, req *rawhttp.Request) error {
	res, err := s.Transport.Send(ctx, req)
	if err != nil {
		var coded *errcode.Error
		if errors.As(err, &coded) {
			return err
		}
		return errcode.New(errcode.IOException, err)
	}
	return rawhttp.WriteResponse(s.Out, res)
}

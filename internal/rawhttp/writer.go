package rawhttp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
)

func writeHeader(w io.Writer, h Header) error {
	for _, f := range h {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", f.Name, f.Value); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// WriteResponse serializes res to w exactly as it is: status line, header
// fields in their original order, then the body.
func WriteResponse(w io.Writer, res *Response) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "%s\r\n", res.StatusLine()); err != nil {
		return errcode.New(errcode.IOException, err)
	}
	if err := writeHeader(bw, res.Header); err != nil {
		return errcode.New(errcode.IOException, err)
	}
	if res.Body != nil {
		if _, err := res.Body.WriteTo(bw); err != nil {
			return err
		}
	}
	return errcode.New(errcode.IOException, bw.Flush())
}

// WriteRequest serializes req to w using the origin-form target.
func WriteRequest(w io.Writer, req *Request) error {
	bw := bufio.NewWriter(w)

	header := req.Header
	if len(req.Body) > 0 && !header.Has("Content-Length") {
		header = header.With("Content-Length", strconv.Itoa(len(req.Body)))
	}

	if _, err := fmt.Fprintf(bw, "%s %s %s\r\n", req.Method, req.RequestURI(), req.Version); err != nil {
		return errcode.New(errcode.IOException, err)
	}
	if err := writeHeader(bw, header); err != nil {
		return errcode.New(errcode.IOException, err)
	}
	if _, err := bw.Write(req.Body); err != nil {
		return errcode.New(errcode.IOException, err)
	}
	return errcode.New(errcode.IOException, bw.Flush())
}

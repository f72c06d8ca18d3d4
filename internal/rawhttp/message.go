// Package rawhttp parses and serializes HTTP/1.x messages written as plain
// text, the way a user would type them into a terminal or a file.
package rawhttp

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrInvalidRequest  = errors.New("invalid HTTP request")
	ErrInvalidResponse = errors.New("invalid HTTP response")
	ErrUnsupported     = errors.New("unsupported")
	// ErrEmptyRequest is reported when input ends before a request line.
	ErrEmptyRequest = errors.New("empty request")
)

// DefaultVersion is used when a request line omits the protocol version.
const DefaultVersion = "HTTP/1.1"

// Request is a parsed HTTP request.
type Request struct {
	Method  string
	Target  string
	Version string
	URL     *url.URL
	Header  Header
	Body    []byte
}

// Path returns the decoded path of the request target.
func (r *Request) Path() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Path
}

// RequestURI returns the origin-form target sent on the wire.
func (r *Request) RequestURI() string {
	if r.URL == nil {
		return r.Target
	}
	uri := r.URL.RequestURI()
	if uri == "" {
		return "/"
	}
	return uri
}

// Address returns the host:port the request should be sent to, taken from
// an absolute-form target or, failing that, the Host header.
func (r *Request) Address() (string, error) {
	host := ""
	if r.URL != nil && r.URL.Host != "" {
		if r.URL.Scheme != "" && r.URL.Scheme != "http" {
			return "", fmt.Errorf("%w scheme %q", ErrUnsupported, r.URL.Scheme)
		}
		host = r.URL.Host
	} else {
		host = strings.TrimSpace(r.Header.Get("Host"))
	}
	if host == "" {
		return "", fmt.Errorf("%w: no host in request target and no Host header", ErrInvalidRequest)
	}

	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(strings.Trim(host, "[]"), "80")
	}
	return host, nil
}

// Response is an HTTP response. Responses are treated as values: WithBody
// returns a modified copy rather than changing the receiver.
type Response struct {
	Version string
	Status  int
	Reason  string
	Header  Header
	Body    Body
}

// NewResponse builds a response with the standard reason phrase for status.
func NewResponse(version string, status int, header Header, body Body) *Response {
	return &Response{
		Version: version,
		Status:  status,
		Reason:  http.StatusText(status),
		Header:  header,
		Body:    body,
	}
}

// WithBody returns a copy of r carrying body. Header fields are kept as is.
func (r *Response) WithBody(body Body) *Response {
	out := *r
	out.Header = r.Header.Clone()
	out.Body = body
	return &out
}

// Framed returns r with a Content-Length field appended when the body size
// is known and r does not already declare one. Otherwise r is returned.
func (r *Response) Framed() *Response {
	if r.Body == nil || r.Header.Has("Content-Length") {
		return r
	}
	n := r.Body.Len()
	if n < 0 {
		return r
	}
	out := *r
	out.Header = r.Header.With("Content-Length", strconv.FormatInt(n, 10))
	return &out
}

// StatusLine renders the first line of the response without the line ending.
func (r *Response) StatusLine() string {
	if r.Reason == "" {
		return fmt.Sprintf("%s %d", r.Version, r.Status)
	}
	return fmt.Sprintf("%s %d %s", r.Version, r.Status, r.Reason)
}

// bodyless reports whether a response with this status never has a body.
func bodyless(status int) bool {
	return (status >= 100 && status < 200) || status == http.StatusNoContent || status == http.StatusNotModified
}

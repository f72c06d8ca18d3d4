// Package router maps requests onto files below a root directory.
package router

import (
	"os"
	"path"
	"path/filepath"

	"github.com/DimaGolomozy/rawhttp/internal/rawhttp"
)

const (
	serverName = "RawHTTP"

	methodNotAllowedBody = "Method not allowed."
	notFoundBody         = "Resource does not exist."
)

// Handler produces the response for a request.
type Handler interface {
	Handle(req *rawhttp.Request) *rawhttp.Response
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(req *rawhttp.Request) *rawhttp.Response

func (f HandlerFunc) Handle(req *rawhttp.Request) *rawhttp.Response {
	return f(req)
}

// StaticFileRouter serves regular files below root to GET requests. It keeps
// no mutable state and is safe for concurrent use.
type StaticFileRouter struct {
	root string
}

// New serves files below root.
func New(root string) *StaticFileRouter {
	return &StaticFileRouter{root: root}
}

// Root returns the directory files are served from.
func (r *StaticFileRouter) Root() string {
	return r.root
}

// Handle implements Handler.
func (r *StaticFileRouter) Handle(req *rawhttp.Request) *rawhttp.Response {
	return r.Route(req)
}

// Route returns the response for req. Only GET is served; any other method
// gets 405. A GET for something that is not a regular file gets 404. The
// file of a 200 response is not opened until its body is written.
func (r *StaticFileRouter) Route(req *rawhttp.Request) *rawhttp.Response {
	if req.Method != "GET" {
		return rawhttp.NewResponse(req.Version, 405, rawhttp.Header{
			{Name: "Content-Length", Value: "19"},
			{Name: "Content-Type", Value: "plain/text"},
			{Name: "Server", Value: serverName},
		}, rawhttp.BytesBody(methodNotAllowedBody))
	}

	candidate := r.resolve(req.Path())
	if fi, err := os.Stat(candidate); err == nil && fi.Mode().IsRegular() {
		res := rawhttp.NewResponse(req.Version, 200, rawhttp.Header{
			{Name: "Content-Type", Value: "application/octet-stream"},
			{Name: "Server", Value: serverName},
		}, nil)
		return res.WithBody(rawhttp.FileBody{Path: candidate})
	}

	return rawhttp.NewResponse(req.Version, 404, rawhttp.Header{
		{Name: "Content-Length", Value: "24"},
		{Name: "Content-Type", Value: "plain/text"},
		{Name: "Server", Value: serverName},
	}, rawhttp.BytesBody(notFoundBody))
}

// resolve joins the request path to the root. The path is cleaned as if it
// were absolute first, so ".." segments stop at the root.
func (r *StaticFileRouter) resolve(p string) string {
	clean := path.Clean("/" + p)
	return filepath.Join(r.root, filepath.FromSlash(clean))
}

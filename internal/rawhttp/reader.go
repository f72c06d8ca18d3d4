package rawhttp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
)

const (
	maxLineLength   = 64 << 10
	maxHeaderLength = 1 << 20
	// maxBodyLength caps request bodies. Response bodies are only limited by
	// what the peer actually sends.
	maxBodyLength = 32 << 20
)

var versionPattern = regexp.MustCompile(`^HTTP/\d\.\d$`)

// errEndOfInput marks EOF reached where a line was expected.
var errEndOfInput = errors.New("end of input")

func newBufReader(r io.Reader) *bufio.Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// readLine reads one line, accepting both CRLF and bare LF endings. EOF
// after a partial line returns that line.
func readLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		l, more, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line != nil {
					return string(line), nil
				}
				return "", errEndOfInput
			}
			return "", errcode.New(errcode.IOException, err)
		}
		line = append(line, l...)
		if len(line) > maxLineLength {
			return "", fmt.Errorf("line longer than %d bytes", maxLineLength)
		}
		if !more {
			return string(line), nil
		}
	}
}

// readHeader reads header fields up to the blank line. Running out of input
// also ends the header section, so hand-written messages need no trailing
// blank line.
func readHeader(r *bufio.Reader) (Header, error) {
	var h Header
	size := 0
	for {
		line, err := readLine(r)
		if errors.Is(err, errEndOfInput) {
			return h, nil
		}
		if err != nil {
			return nil, err
		}
		if line == "" {
			return h, nil
		}
		if size += len(line); size > maxHeaderLength {
			return nil, fmt.Errorf("header section larger than %d bytes", maxHeaderLength)
		}
		if line[0] == ' ' || line[0] == '\t' {
			return nil, fmt.Errorf("obsolete line folding in header: %q", line)
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header line: %q", line)
		}
		value = strings.TrimSpace(value)
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, fmt.Errorf("invalid header name: %q", name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, fmt.Errorf("invalid value for header %s", name)
		}
		h = append(h, Field{Name: name, Value: value})
	}
}

func contentLength(h Header) (int64, bool, error) {
	v, ok := h.Lookup("Content-Length")
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("invalid Content-Length: %q", v)
	}
	return n, true, nil
}

// readFixedBody reads exactly n bytes. The buffer grows with the data
// received, never with the declared length.
func readFixedBody(r *bufio.Reader, n int64) ([]byte, error) {
	var body bytes.Buffer
	if _, err := io.CopyN(&body, r, n); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("body shorter than Content-Length %d", n)
		}
		return nil, errcode.New(errcode.IOException, err)
	}
	return body.Bytes(), nil
}

func parseTarget(target string) (*url.URL, error) {
	switch {
	case target == "*":
		return &url.URL{Path: "*"}, nil
	case strings.HasPrefix(target, "/"):
		return url.ParseRequestURI(target)
	case strings.Contains(target, "://"):
		return url.Parse(target)
	default:
		return url.Parse("http://" + target)
	}
}

// invalid wraps a parse failure with sentinel unless it already carries an
// I/O classification.
func invalid(sentinel error, err error) error {
	var coded *errcode.Error
	if errors.As(err, &coded) {
		return err
	}
	return errcode.New(errcode.InvalidHTTPRequest, fmt.Errorf("%w: %w", sentinel, err))
}

// ReadRequest reads one request from r. The request line may omit the
// version, which then defaults to HTTP/1.1. When the target is in absolute
// form and no Host header was given, one is appended.
func ReadRequest(r io.Reader) (*Request, error) {
	br := newBufReader(r)

	var line string
	for {
		l, err := readLine(br)
		if errors.Is(err, errEndOfInput) {
			return nil, invalid(ErrInvalidRequest, ErrEmptyRequest)
		}
		if err != nil {
			return nil, invalid(ErrInvalidRequest, err)
		}
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 3 {
		return nil, invalid(ErrInvalidRequest, fmt.Errorf("malformed request line: %q", line))
	}
	req := &Request{Method: fields[0], Target: fields[1], Version: DefaultVersion}
	if len(fields) == 3 {
		req.Version = fields[2]
	}
	if !httpguts.ValidHeaderFieldName(req.Method) {
		return nil, invalid(ErrInvalidRequest, fmt.Errorf("invalid method: %q", req.Method))
	}
	if !versionPattern.MatchString(req.Version) {
		return nil, invalid(ErrInvalidRequest, fmt.Errorf("invalid HTTP version: %q", req.Version))
	}

	u, err := parseTarget(req.Target)
	if err != nil {
		return nil, invalid(ErrInvalidRequest, fmt.Errorf("invalid request target %q: %w", req.Target, err))
	}
	req.URL = u

	req.Header, err = readHeader(br)
	if err != nil {
		return nil, invalid(ErrInvalidRequest, err)
	}
	if u.Host != "" && !req.Header.Has("Host") {
		req.Header = req.Header.With("Host", u.Host)
	}

	if req.Header.Has("Transfer-Encoding") {
		return nil, invalid(ErrInvalidRequest, fmt.Errorf("%w Transfer-Encoding: %s", ErrUnsupported, req.Header.Get("Transfer-Encoding")))
	}
	n, ok, err := contentLength(req.Header)
	if err != nil {
		return nil, invalid(ErrInvalidRequest, err)
	}
	if n > maxBodyLength {
		return nil, invalid(ErrInvalidRequest, fmt.Errorf("body of %d bytes exceeds the %d byte limit", n, maxBodyLength))
	}
	if ok {
		req.Body, err = readFixedBody(br, n)
		if err != nil {
			return nil, invalid(ErrInvalidRequest, err)
		}
	}

	return req, nil
}

// ParseRequest parses request text such as "GET http://example.com/ HTTP/1.1".
func ParseRequest(text string) (*Request, error) {
	return ReadRequest(strings.NewReader(text))
}

// ReadResponse reads one response from r. method is the method of the
// request being answered; HEAD responses and 1xx, 204 and 304 responses
// carry no body. Without Content-Length the body runs to the end of r.
func ReadResponse(r io.Reader, method string) (*Response, error) {
	br := newBufReader(r)

	line, err := readLine(br)
	if errors.Is(err, errEndOfInput) {
		return nil, invalid(ErrInvalidResponse, errors.New("empty response"))
	}
	if err != nil {
		return nil, invalid(ErrInvalidResponse, err)
	}

	version, rest, _ := strings.Cut(line, " ")
	code, reason, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	if !versionPattern.MatchString(version) {
		return nil, invalid(ErrInvalidResponse, fmt.Errorf("malformed status line: %q", line))
	}
	status, err := strconv.Atoi(code)
	if err != nil || len(code) != 3 || status < 100 {
		return nil, invalid(ErrInvalidResponse, fmt.Errorf("invalid status code: %q", code))
	}

	header, err := readHeader(br)
	if err != nil {
		return nil, invalid(ErrInvalidResponse, err)
	}
	res := &Response{Version: version, Status: status, Reason: reason, Header: header}

	if method == "HEAD" || bodyless(status) {
		return res, nil
	}
	n, ok, err := contentLength(header)
	if err != nil {
		return nil, invalid(ErrInvalidResponse, err)
	}
	var body []byte
	if ok {
		body, err = readFixedBody(br, n)
	} else {
		body, err = io.ReadAll(br)
		if err != nil {
			err = errcode.New(errcode.IOException, err)
		}
	}
	if err != nil {
		return nil, invalid(ErrInvalidResponse, err)
	}
	if len(body) > 0 {
		res.Body = BytesBody(body)
	}
	return res, nil
}

// ParseResponse parses response text such as "HTTP/1.1 200 OK\nServer: x".
func ParseResponse(text string) (*Response, error) {
	return ReadResponse(strings.NewReader(text), "")
}

package rawhttp

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/DimaGolomozy/rawhttp/internal/errcode"
)

// Body is the payload of a message. Len returns the size in bytes, or -1 if
// it cannot be known before writing.
type Body interface {
	io.WriterTo
	Len() int64
}

// BytesBody is an in-memory body.
type BytesBody []byte

func (b BytesBody) Len() int64 { return int64(len(b)) }

func (b BytesBody) WriteTo(w io.Writer) (int64, error) {
	n, err := bytes.NewReader(b).WriteTo(w)
	if err != nil {
		return n, errcode.New(errcode.IOException, err)
	}
	return n, nil
}

// FileBody streams the contents of a file. The file is opened only when the
// body is written and is closed before WriteTo returns.
type FileBody struct {
	Path string
}

func (f FileBody) Len() int64 {
	fi, err := os.Stat(f.Path)
	if err != nil || !fi.Mode().IsRegular() {
		return -1
	}
	return fi.Size()
}

func (f FileBody) WriteTo(w io.Writer) (int64, error) {
	fd, err := os.Open(f.Path)
	if err != nil {
		return 0, errcode.New(errcode.IOException, err)
	}
	defer fd.Close()

	n, err := io.Copy(w, fd)
	if err != nil {
		return n, errcode.New(errcode.IOException, fmt.Errorf("streaming %s: %w", f.Path, err))
	}
	return n, nil
}

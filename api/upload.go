package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrNoUploadContent is returned when an upload names neither a file path nor a reader.
var ErrNoUploadContent = errors.New("upload requires FilePath or Reader")

// UploadOptions describes one multipart upload. Either FilePath or Reader must be
// set; FileName defaults to the base name of FilePath.
type UploadOptions struct {
	URL       string
	FieldName string
	FilePath  string
	Reader    io.Reader
	FileName  string
	FormData  map[string]string
	Header    http.Header
}

// Upload sends a multipart/form-data call with the same token decoration and the
// same result contract as [Gateway.Request].
func (g *Gateway) Upload(ctx context.Context, opts UploadOptions) (*Envelope, error) {
	return g.upload(ctx, opts, nil)
}

func (g *Gateway) upload(ctx context.Context, opts UploadOptions, decode func(*Envelope) *Error) (*Envelope, error) {
	start := time.Now()
	env, apiErr := g.withLoading(ctx, func() (*Envelope, *Error) {
		req, err := g.newUploadRequest(ctx, opts)
		if err != nil {
			return nil, &Error{Kind: KindTransport, Err: err}
		}
		return g.send(req)
	})
	if apiErr == nil && decode != nil {
		apiErr = decode(env)
	}
	if g.observer != nil {
		g.observer.ObserveUpload(kindOf(apiErr), time.Since(start))
	}
	return g.finish(ctx, http.MethodPost, opts.URL, env, apiErr)
}

func (g *Gateway) newUploadRequest(ctx context.Context, opts UploadOptions) (*http.Request, error) {
	content, name, closeFn, err := openUploadContent(opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	field := opts.FieldName
	if field == "" {
		field = "file"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(opts.FormData))
	for k := range opts.FormData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, opts.FormData[k]); err != nil {
			return nil, fmt.Errorf("write form field %q: %w", k, err)
		}
	}

	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+opts.URL, &buf)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set(headerContentType, mw.FormDataContentType())
	g.decorate(ctx, req, opts.Header)
	return req, nil
}

func openUploadContent(opts UploadOptions) (io.Reader, string, func(), error) {
	if opts.Reader != nil {
		name := opts.FileName
		if name == "" {
			name = "upload"
		}
		return opts.Reader, name, func() {}, nil
	}
	if opts.FilePath == "" {
		return nil, "", nil, ErrNoUploadContent
	}

	f, err := os.Open(opts.FilePath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open upload file: %w", err)
	}
	name := opts.FileName
	if name == "" {
		name = filepath.Base(opts.FilePath)
	}
	return f, name, func() { _ = f.Close() }, nil
}

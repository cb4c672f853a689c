// Package client talks to the upstream archive parser and problem API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx. Upstream requests
// made with ctx forward it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the token attached with WithToken.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type requestIDKey struct{}

// WithRequestID attaches the inbound request ID to ctx so upstream logs can
// be correlated.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// base is the shared request plumbing of both clients.
type base struct {
	service string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func newBase(service, baseURL string, timeout time.Duration, log zerolog.Logger) base {
	return base{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", service+"_client").Logger(),
	}
}

func (b base) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id, _ := ctx.Value(requestIDKey{}).(string); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out (nil to discard).
func (b base) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", b.service, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	b.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Upstream request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeError(b.service, resp.StatusCode, body)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s response: %w", b.service, err)
	}
	return nil
}

func (b base) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	req, err := b.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return b.do(req, out)
}

// doMultipart streams the parts written by write as multipart/form-data.
func (b base) doMultipart(ctx context.Context, method, path string, write func(*multipart.Writer) error, out any) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := write(mw)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := b.newRequest(ctx, method, path, pr, mw.FormDataContentType())
	if err != nil {
		pr.Close()
		return err
	}
	err = b.do(req, out)
	pr.Close()
	return err
}

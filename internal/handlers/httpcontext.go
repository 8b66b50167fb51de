package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// MaxBodyBytes bounds request bodies read through Body.
const MaxBodyBytes = 1 << 20

// HTTPContext implements Context over a plain ResponseWriter and Request.
type HTTPContext struct {
	W     http.ResponseWriter
	R     *http.Request
	param func(r *http.Request, name string) string
}

// NewHTTPContext wraps w and r. param resolves path parameters the way the
// router stores them.
func NewHTTPContext(w http.ResponseWriter, r *http.Request, param func(r *http.Request, name string) string) *HTTPContext {
	return &HTTPContext{W: w, R: r, param: param}
}

func (h *HTTPContext) Context() context.Context {
	return h.R.Context()
}

func (h *HTTPContext) Param(name string) string {
	return h.param(h.R, name)
}

func (h *HTTPContext) Body() ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(h.W, h.R.Body, MaxBodyBytes))
}

// JSON encodes v before touching the response, so an encoding failure can
// still become a 500.
func (h *HTTPContext) JSON(status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.W.Header().Set("Content-Type", "application/json; charset=utf-8")
	h.W.WriteHeader(status)
	_, err = h.W.Write(append(b, '\n'))
	return err
}

func (h *HTTPContext) HTML(status int, html string) error {
	h.W.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.W.WriteHeader(status)
	_, err := io.WriteString(h.W, html)
	return err
}

func (h *HTTPContext) NoContent(status int) error {
	h.W.WriteHeader(status)
	return nil
}

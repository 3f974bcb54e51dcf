package view

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	// ErrNoRenderer is returned when a request carries no Renderer.
	ErrNoRenderer = errors.New("view: no renderer on request")

	// ErrOutsideScope is returned for names that climb out of a scoped directory.
	ErrOutsideScope = errors.New("view: name escapes the view directory")
)

//
// tenant scoping
//

type scoped struct {
	base Renderer
	dir  string
}

// Scoped returns a Renderer that resolves every name inside dir and hands
// the joined path to base.
func Scoped(base Renderer, dir string) Renderer {
	return &scoped{base: base, dir: filepath.Clean(dir)}
}

func (s *scoped) Render(w io.Writer, name string, data any) error {
	if s.base == nil {
		return ErrNoRenderer
	}
	p := filepath.Join(s.dir, name)
	if p != s.dir && !strings.HasPrefix(p, s.dir+string(filepath.Separator)) {
		return ErrOutsideScope
	}
	return s.base.Render(w, p, data)
}

// ScopeDir returns the directory of a Scoped renderer, or "" for any other.
func ScopeDir(r Renderer) string {
	if s, ok := r.(*scoped); ok {
		return s.dir
	}
	return ""
}

//
// request context
//

type ctxKey struct{}

// WithRenderer returns ctx carrying r.
func WithRenderer(ctx context.Context, r Renderer) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the Renderer stored in ctx, or nil.
func FromContext(ctx context.Context) Renderer {
	r, _ := ctx.Value(ctxKey{}).(Renderer)
	return r
}

// Render executes name with the request's Renderer and writes the result
// as text/html.  Nothing is written when rendering fails.
func Render(w http.ResponseWriter, r *http.Request, name string, data any) error {
	rd := FromContext(r.Context())
	if rd == nil {
		return ErrNoRenderer
	}
	var buf bytes.Buffer
	if err := rd.Render(&buf, name, data); err != nil {
		return err
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	_, err := buf.WriteTo(w)
	return err
}

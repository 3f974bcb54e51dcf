package view

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestEngine_RendersWithSharedSet(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "home.html"), `<h1>{{ template "title" . }}</h1>`)
	writeFile(t, filepath.Join(root, "partials.html"), `{{ define "title" }}Hi {{ .Name }}{{ end }}`)

	e := NewEngine(root)
	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, "home", map[string]string{"Name": "Ada"}))
	assert.Equal(t, "<h1>Hi Ada</h1>", buf.String())

	buf.Reset()
	require.NoError(t, e.Render(&buf, "home.html", map[string]string{"Name": "Bob"}))
	assert.Equal(t, "<h1>Hi Bob</h1>", buf.String())
}

func TestEngine_MissingTemplate(t *testing.T) {
	e := NewEngine(t.TempDir())
	err := e.Render(io.Discard, "nope", nil)
	assert.True(t, errors.Is(err, os.ErrNotExist), "err = %v", err)
}

func TestScoped_ResolvesInsideDir(t *testing.T) {
	apps := t.TempDir()
	writeFile(t, filepath.Join(apps, "blog", "views", "index.html"), `blog index`)

	s := Scoped(NewEngine("/nonexistent"), filepath.Join(apps, "blog", "views"))
	var buf bytes.Buffer
	require.NoError(t, s.Render(&buf, "index", nil))
	assert.Equal(t, "blog index", buf.String())
	assert.Equal(t, filepath.Join(apps, "blog", "views"), ScopeDir(s))
}

func TestScoped_RejectsEscape(t *testing.T) {
	var called bool
	base := RendererFunc(func(io.Writer, string, any) error { called = true; return nil })

	s := Scoped(base, "/apps/blog/views")
	err := s.Render(io.Discard, "../../shop/views/secret", nil)
	assert.ErrorIs(t, err, ErrOutsideScope)
	assert.False(t, called)
}

func TestRender_UsesRequestRenderer(t *testing.T) {
	var gotName string
	rd := RendererFunc(func(w io.Writer, name string, data any) error {
		gotName = name
		_, err := io.WriteString(w, "ok")
		return err
	})

	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(WithRenderer(r.Context(), rd))
	rec := httptest.NewRecorder()

	require.NoError(t, Render(rec, r, "page", nil))
	assert.Equal(t, "page", gotName)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestRender_NoRenderer(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.ErrorIs(t, Render(httptest.NewRecorder(), r, "page", nil), ErrNoRenderer)
	assert.Nil(t, FromContext(context.Background()))
}

func TestRender_ErrorWritesNothing(t *testing.T) {
	rd := RendererFunc(func(w io.Writer, _ string, _ any) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("boom")
	})
	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(WithRenderer(r.Context(), rd))
	rec := httptest.NewRecorder()

	assert.Error(t, Render(rec, r, "page", nil))
	assert.Empty(t, rec.Body.String())
}

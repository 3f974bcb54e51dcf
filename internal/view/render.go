// internal/view/render.go
//
// Template engine used by the shared server and, through Scoped, by every
// tenant.
//
// Public helpers
// --------------
//   - Engine.Render  – execute a template file by name.
//   - Scoped         – wrap a Renderer so names resolve inside one directory.
//   - Render         – render with whatever Renderer the request carries.
//
// Lookup
// ------
// A name without extension gets ".html".  Relative names resolve against
// the engine root; absolute names are used as-is, which is how tenant
// scoping hands over "<apps>/<tenant>/views/<name>".  All files with the
// same extension in the template's directory are parsed as one set, so
// {{ template "row" . }} works across files.
//
// Parsed sets are kept in an LRU keyed by directory and extension.
// Concurrent cold renders of the same set share one parse.
package view

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/modena/internal/cache"
)

// Renderer executes a named view into w.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(w io.Writer, name string, data any) error

// Render calls f.
func (f RendererFunc) Render(w io.Writer, name string, data any) error { return f(w, name, data) }

// DefaultCacheSize is the number of parsed template sets kept per engine.
const DefaultCacheSize = 256

// Engine renders html/template files from disk.  Safe for concurrent use.
type Engine struct {
	root    string
	funcs   template.FuncMap
	sets    *cache.LRU[string, *template.Template]
	sfg     singleflight.Group
	noCache bool
	log     *zap.Logger
}

// Option tunes an Engine.
type Option func(*Engine)

// WithFuncs adds template functions to every parsed set.
func WithFuncs(fm template.FuncMap) Option {
	return func(e *Engine) {
		for k, v := range fm {
			e.funcs[k] = v
		}
	}
}

// WithoutCache re-parses templates on every render (development).
func WithoutCache() Option { return func(e *Engine) { e.noCache = true } }

// WithLogger sets the engine logger.
func WithLogger(log *zap.Logger) Option { return func(e *Engine) { e.log = log } }

// NewEngine returns an Engine rooted at root.
func NewEngine(root string, opts ...Option) *Engine {
	e := &Engine{
		root:  root,
		funcs: template.FuncMap{"dict": dict},
		sets:  cache.New[string, *template.Template](DefaultCacheSize),
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Render executes the template called name.
func (e *Engine) Render(w io.Writer, name string, data any) error {
	path := e.path(name)
	t, err := e.load(path)
	if err != nil {
		return err
	}
	return t.ExecuteTemplate(w, filepath.Base(path), data)
}

// path maps a view name to a file path.
func (e *Engine) path(name string) string {
	if filepath.Ext(name) == "" {
		name += ".html"
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(e.root, name)
	}
	return filepath.Clean(name)
}

// load returns the parsed set containing path.
func (e *Engine) load(path string) (*template.Template, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("view %s: %w", path, err)
	}

	dir, ext := filepath.Dir(path), filepath.Ext(path)
	key := dir + "::" + ext

	if !e.noCache {
		if t, ok := e.sets.Get(key); ok && t.Lookup(filepath.Base(path)) != nil {
			return t, nil
		}
	}

	v, err, _ := e.sfg.Do(key, func() (any, error) {
		t, err := template.New(filepath.Base(path)).
			Funcs(e.funcs).
			ParseGlob(filepath.Join(dir, "*"+ext))
		if err != nil {
			e.log.Error("template parse failed", zap.String("dir", dir), zap.Error(err))
			return nil, err
		}
		if !e.noCache {
			e.sets.Add(key, t)
		}
		e.log.Debug("template set parsed", zap.String("dir", dir), zap.Int("templates", len(t.Templates())))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*template.Template), nil
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}

package debug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/modena/internal/mount"
	"github.com/yanizio/modena/internal/tenant"
)

func TestDebug_ReportsResolution(t *testing.T) {
	entry := tenant.Lookup("debug")
	require.NotNil(t, entry)

	d := tenant.NewDescriptor("debug", entry, map[string]string{"TOKEN": "x", "API": "y"})
	set, err := tenant.NewSet([]*tenant.Descriptor{d}, "debug", zap.NewNop())
	require.NoError(t, err)

	router := chi.NewRouter()
	_, err = mount.New(router, set, mount.Options{}, nil).Mount(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?a=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "debug", out["app"])
	assert.Equal(t, "default", out["strategy"])
	assert.Equal(t, "/?a=1", out["original"])
	assert.Equal(t, "/debug/", out["rewritten"])
	assert.Equal(t, []any{"API", "TOKEN"}, out["env"])
}

func TestDebug_PanicIsRestored(t *testing.T) {
	d := tenant.NewDescriptor("debug", tenant.FactoryFunc(New), nil)
	set, err := tenant.NewSet([]*tenant.Descriptor{d}, "", zap.NewNop())
	require.NoError(t, err)

	var restoredPath string
	router := chi.NewRouter()
	_, err = mount.New(router, set, mount.Options{
		OnError: func(w http.ResponseWriter, r *http.Request, _ any) {
			restoredPath = r.URL.Path
			w.WriteHeader(http.StatusInternalServerError)
		},
	}, nil).Mount(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "/debug/panic", restoredPath)
}

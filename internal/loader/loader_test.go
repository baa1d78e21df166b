package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflux/flux/internal/flux"
	"github.com/orbitflux/flux/internal/logger"
)

func newTestLoader(t *testing.T, fluxRoot string) *Loader {
	t.Helper()
	return New("", fluxRoot, logger.New("error"))
}

func TestRegisterActionIsFoundAfterReload(t *testing.T) {
	l := newTestLoader(t, "")
	l.RegisterAction("users/create", func(ctx *flux.Context, args map[string]any) (any, error) {
		return "created", nil
	})

	require.NoError(t, l.Reload())
	handler := l.GetAction("users/create")
	require.NotNil(t, handler)

	result, err := handler(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "created", result)
}

func TestGetActionMissingReturnsNil(t *testing.T) {
	l := newTestLoader(t, "")
	require.NoError(t, l.Reload())
	assert.Nil(t, l.GetAction("nothing/here"))
}

func TestLoadFluxDefinitionsFromDisk(t *testing.T) {
	dir := t.TempDir()
	writeFlux(t, dir, "ping.json", `{
		"endpoint": "/ping",
		"method": "GET",
		"flow": [{"type": "return", "status": 200, "body": {"ok": true}}]
	}`)

	l := newTestLoader(t, dir)
	require.NoError(t, l.Reload())

	defs := l.LoadFluxDefinitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "GET /ping", defs[0].Key())
	assert.Empty(t, l.GetFluxErrors())
}

func TestLoadFluxDefinitionsCollectsInvalidFilesSeparately(t *testing.T) {
	dir := t.TempDir()
	writeFlux(t, dir, "good.json", `{
		"endpoint": "/good",
		"method": "GET",
		"flow": [{"type": "return", "status": 200, "body": "ok"}]
	}`)
	writeFlux(t, dir, "bad.json", `{
		"endpoint": "/bad",
		"method": "TRACE",
		"flow": [{"type": "return", "status": 200, "body": "ok"}]
	}`)

	l := newTestLoader(t, dir)
	require.NoError(t, l.Reload())

	defs := l.LoadFluxDefinitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "GET /good", defs[0].Key())

	errs := l.GetFluxErrors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].File, "bad.json")
}

func TestLoadFluxMissingRootYieldsEmptyTable(t *testing.T) {
	l := newTestLoader(t, filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, l.Reload())
	assert.Empty(t, l.LoadFluxDefinitions())
}

func writeFlux(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	name      string
	setUp     bool
	failSetup bool
	client    any
}

func (f *fakePlugin) Name() string { return f.name }

func (f *fakePlugin) Setup(ctx context.Context, config map[string]any) error {
	if f.failSetup {
		return errors.New("boom")
	}
	f.setUp = true
	return nil
}

func (f *fakePlugin) Teardown(ctx context.Context) error {
	f.setUp = false
	return nil
}

func (f *fakePlugin) GetClient() any {
	if !f.setUp {
		panic(&NotSetUpError{LogicalKey: f.name})
	}
	return f.client
}

func TestRegistryConfigureAndInject(t *testing.T) {
	r := NewRegistry()
	p := &fakePlugin{name: "cache", client: "redis-conn"}
	r.Register("cache", "redis", func() Plugin { return p })

	err := r.Configure(context.Background(), []Entry{{LogicalKey: "cache", Type: "redis"}})
	require.NoError(t, err)
	assert.True(t, p.setUp)

	ctxPlugins := map[string]any{}
	r.Inject(ctxPlugins)
	assert.Equal(t, "redis-conn", ctxPlugins["cache"])
}

func TestRegistryConfigureUnknownFactory(t *testing.T) {
	r := NewRegistry()
	err := r.Configure(context.Background(), []Entry{{LogicalKey: "cache", Type: "redis"}})
	assert.Error(t, err)
}

func TestRegistryConfigureAbortsOnSetupFailure(t *testing.T) {
	r := NewRegistry()
	p := &fakePlugin{name: "cache", failSetup: true}
	r.Register("cache", "redis", func() Plugin { return p })

	err := r.Configure(context.Background(), []Entry{{LogicalKey: "cache", Type: "redis"}})
	assert.Error(t, err)
}

func TestRegistryTeardownAllClearsInstances(t *testing.T) {
	r := NewRegistry()
	p := &fakePlugin{name: "cache"}
	r.Register("cache", "redis", func() Plugin { return p })
	require.NoError(t, r.Configure(context.Background(), []Entry{{LogicalKey: "cache", Type: "redis"}}))

	errs := r.TeardownAll(context.Background())
	assert.Empty(t, errs)
	assert.False(t, p.setUp)

	ctxPlugins := map[string]any{}
	r.Inject(ctxPlugins)
	assert.Empty(t, ctxPlugins)
}

func TestGetClientBeforeSetupPanics(t *testing.T) {
	p := &fakePlugin{name: "cache"}
	assert.Panics(t, func() { p.GetClient() })
}

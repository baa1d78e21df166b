package loader

import (
	"fmt"
	"plugin"

	"github.com/orbitflux/flux/internal/flux"
)

// openActionPlugin opens a compiled `.so` handler module and resolves its
// exported `Handler` symbol. This is the literal Go analogue of the
// source system's "import an arbitrary action module at runtime": Go has
// no equivalent of a dynamic `import()` over source files, so `.so`
// plugins built with `go build -buildmode=plugin` are the closest
// standard-library primitive. RegisterAction is the practical escape
// hatch used by tests and the bundled examples, since this repository
// cannot itself invoke the Go toolchain to produce `.so` files.
func openActionPlugin(path string) (ActionHandler, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open plugin: %w", err)
	}
	sym, err := p.Lookup("Handler")
	if err != nil {
		return nil, fmt.Errorf("loader: lookup Handler symbol: %w", err)
	}
	handler, ok := sym.(ActionHandler)
	if !ok {
		if fn, ok := sym.(func(*flux.Context, map[string]any) (any, error)); ok {
			return ActionHandler(fn), nil
		}
		return nil, fmt.Errorf("loader: Handler symbol has unexpected type %T", sym)
	}
	return handler, nil
}

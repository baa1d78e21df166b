// Package flux defines the flux definition AST and the per-request context
// that the executor walks and mutates.
package flux

import (
	"context"
	"net/http"
)

// Method is one of the seven HTTP verbs a flux endpoint may bind to.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodOptions Method = "OPTIONS"
	MethodHead    Method = "HEAD"
)

// ValidMethods lists every method accepted by the validator.
var ValidMethods = []Method{
	MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodOptions, MethodHead,
}

// NodeType tags the six flow node variants.
type NodeType string

const (
	NodeAction    NodeType = "action"
	NodeCondition NodeType = "condition"
	NodeForEach   NodeType = "forEach"
	NodeParallel  NodeType = "parallel"
	NodeTry       NodeType = "try"
	NodeReturn    NodeType = "return"
)

// Node is one element of a flow's node tree. Exactly one of the typed
// fields is populated, selected by Type; this mirrors a tagged union
// without resorting to an interface-per-variant, which would make the
// validator and the JSON round trip (§8 invariant 5) fight each other.
type Node struct {
	Type NodeType `json:"type"`

	// Action fields.
	Name string         `json:"name,omitempty"`
	Path string         `json:"path,omitempty"`
	Args map[string]any `json:"args,omitempty"`

	// Condition fields.
	If   string `json:"if,omitempty"`
	Then []Node `json:"then,omitempty"`
	Else []Node `json:"else,omitempty"`

	// ForEach fields.
	Items string `json:"items,omitempty"`
	As    string `json:"as,omitempty"`
	Do    []Node `json:"do,omitempty"`

	// Parallel fields.
	Branches [][]Node `json:"branches,omitempty"`

	// Try fields.
	Try      []Node `json:"try,omitempty"`
	Catch    []Node `json:"catch,omitempty"`
	ErrorVar string `json:"errorVar,omitempty"`

	// Return fields.
	Status int `json:"status,omitempty"`
	Body   any `json:"body,omitempty"`
}

// Definition is one flux: an HTTP endpoint bound to an ordered flow.
// Immutable once loaded — the executor must never write through it.
type Definition struct {
	Endpoint    string  `json:"endpoint"`
	Method      Method  `json:"method"`
	Description string  `json:"description,omitempty"`
	Flow        []Node  `json:"flow"`
	SourceFile  string  `json:"-"`
}

// Key identifies a definition by its route identity, independent of the
// filename it was loaded from.
func (d *Definition) Key() string {
	return string(d.Method) + " " + d.Endpoint
}

// Context is the per-request mutable state threaded through a flow.
// `bindings` models the source's dynamic property bag (action results,
// forEach loop variables, caught errors) behind a single map so the `.`
// path traversal in the interpolator walks one recursive structure instead
// of special-casing each kind of dynamic binding.
type Context struct {
	Request  *http.Request
	Response http.ResponseWriter
	Ctx      context.Context

	Input   map[string]any
	Results map[string]any
	State   map[string]any
	Plugins map[string]any
	Args    map[string]any

	// RequestMeta backs `${request.*}` lookups (e.g.
	// `request.authenticated`, `request.claims`), populated by ambient
	// middleware such as the auth/jwt gate rather than by flow nodes.
	RequestMeta map[string]any

	bindings map[string]any

	responded bool
	status    int
}

// NewContext creates an empty context ready for a flow walk.
func NewContext(ctx context.Context, r *http.Request, w http.ResponseWriter) *Context {
	return &Context{
		Request:     r,
		Response:    w,
		Ctx:         ctx,
		Input:       map[string]any{},
		Results:     map[string]any{},
		State:       map[string]any{},
		Plugins:     map[string]any{},
		RequestMeta: map[string]any{},
		bindings:    map[string]any{},
	}
}

// Bind sets a top-level dynamic binding (action result, loop variable, or
// caught error) visible to `${name...}` lookups.
func (c *Context) Bind(name string, value any) {
	if c.bindings == nil {
		c.bindings = map[string]any{}
	}
	c.bindings[name] = value
}

// Unbind removes a top-level dynamic binding, used when a forEach body
// exits and the loop variable goes out of scope.
func (c *Context) Unbind(name string) {
	delete(c.bindings, name)
}

// Lookup returns the value of a bare top-level name. The fixed context
// fields (`input`, `results`, `state`, `plugins`, `request`, `args`) are
// checked first, so a dynamic binding with one of those names is never
// returned; any other name resolves through the dynamic bindings. This lets
// `${input.flag}` and `${r}` resolve through the same entry point.
func (c *Context) Lookup(name string) (any, bool) {
	switch name {
	case "input":
		return c.Input, true
	case "results":
		return c.Results, true
	case "state":
		return c.State, true
	case "plugins":
		return c.Plugins, true
	case "request":
		return c.RequestMeta, true
	case "args":
		if c.Args == nil {
			return nil, false
		}
		return c.Args, true
	}
	if v, ok := c.bindings[name]; ok {
		return v, true
	}
	return nil, false
}

// Responded reports whether a response has already been written.
func (c *Context) Responded() bool { return c.responded }

// MarkResponded records that the response has been flushed exactly once;
// a second call is a harmless no-op per §7 ("Return-after-return").
func (c *Context) MarkResponded(status int) {
	if c.responded {
		return
	}
	c.responded = true
	c.status = status
}

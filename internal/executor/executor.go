// Package executor interprets a loaded flux definition over a per-request
// Context, walking its flow tree node by node (§4.5).
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/orbitflux/flux/internal/flux"
	"github.com/orbitflux/flux/internal/interpolator"
	"github.com/orbitflux/flux/internal/loader"
	"github.com/orbitflux/flux/internal/logger"
	"github.com/orbitflux/flux/internal/metrics"
	"github.com/orbitflux/flux/internal/plugin"
)

// ActionNotFoundError is returned when a flux references an action path
// the loader's action table has no handler for.
type ActionNotFoundError struct {
	Path string
}

func (e *ActionNotFoundError) Error() string {
	return fmt.Sprintf("action not found: %s", e.Path)
}

// Executor walks flux definitions over request contexts, resolving action
// handlers from a Loader and reporting observational metrics.
type Executor struct {
	loader   *loader.Loader
	log      *logger.Logger
	registry *plugin.Registry
}

// New creates an Executor backed by the given loader and plugin registry.
func New(l *loader.Loader, log *logger.Logger, registry *plugin.Registry) *Executor {
	return &Executor{loader: l, log: log, registry: registry}
}

// ExecuteFlux is the public entry point (§4.5): inject plugin clients into
// ctx.Plugins, walk def.Flow over ctx, and guarantee exactly one HTTP
// response is written.
func (e *Executor) ExecuteFlux(def *flux.Definition, ctx *flux.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("executor: panic recovered", "flux", def.Key(), "panic", r)
			e.writeFailure(ctx)
		}
		metrics.ObserveFluxDuration(def.Key(), time.Since(start))
	}()

	if e.registry != nil {
		e.registry.Inject(ctx.Plugins)
	}

	terminated := e.walk(def.Flow, ctx)
	if !terminated && !ctx.Responded() {
		e.writeJSON(ctx, http.StatusOK, map[string]any{"success": true})
	}
}

// walk executes a sequence of sibling nodes in order, stopping as soon as
// a node early-terminates or the response has already been written.
// Returns true if the walk should be treated as early-terminated by its
// caller (i.e. a Return occurred somewhere within).
func (e *Executor) walk(nodes []flux.Node, ctx *flux.Context) bool {
	for _, node := range nodes {
		terminated := e.executeNode(node, ctx)
		if terminated || ctx.Responded() {
			return true
		}
	}
	return false
}

// executeNode dispatches on node.Type and returns true only when a Return
// node (directly, or nested beneath this node) fired (§4.5 propagation
// rule: only Return originates true; everyone else bubbles it up).
func (e *Executor) executeNode(node flux.Node, ctx *flux.Context) bool {
	switch node.Type {
	case flux.NodeAction:
		return e.executeAction(node, ctx)
	case flux.NodeCondition:
		return e.executeCondition(node, ctx)
	case flux.NodeForEach:
		return e.executeForEach(node, ctx)
	case flux.NodeParallel:
		return e.executeParallel(node, ctx)
	case flux.NodeTry:
		return e.executeTry(node, ctx)
	case flux.NodeReturn:
		return e.executeReturn(node, ctx)
	default:
		e.log.Warnw("executor: unknown node type encountered at runtime", "type", node.Type)
		return false
	}
}

func (e *Executor) executeAction(node flux.Node, ctx *flux.Context) bool {
	handler := e.loader.GetAction(node.Path)
	if handler == nil {
		panic(&ActionNotFoundError{Path: node.Path})
	}

	if node.Args != nil {
		resolved := interpolator.Resolve(node.Args, ctx)
		if m, ok := resolved.(map[string]any); ok {
			ctx.Args = m
		} else {
			ctx.Args = map[string]any{}
		}
	} else {
		ctx.Args = nil
	}

	start := time.Now()
	result, err := handler(ctx, ctx.Args)
	metrics.ObserveNodeDuration(string(flux.NodeAction), time.Since(start), err == nil)
	ctx.Args = nil
	if err != nil {
		panic(err)
	}

	ctx.Results[node.Name] = result
	ctx.Bind(node.Name, result)
	return false
}

func (e *Executor) executeCondition(node flux.Node, ctx *flux.Context) bool {
	if interpolator.EvaluateCondition(node.If, ctx) {
		return e.walk(node.Then, ctx)
	}
	if len(node.Else) > 0 {
		return e.walk(node.Else, ctx)
	}
	return false
}

func (e *Executor) executeForEach(node flux.Node, ctx *flux.Context) bool {
	items := interpolator.Resolve(node.Items, ctx)
	arr, ok := items.([]any)
	if !ok {
		e.log.Warnw("executor: forEach items did not resolve to an array, treating as no-op", "items", node.Items)
		return false
	}

	terminated := false
	for _, item := range arr {
		ctx.Bind(node.As, item)
		if e.walk(node.Do, ctx) {
			terminated = true
			break
		}
	}
	ctx.Unbind(node.As)
	return terminated
}

func (e *Executor) executeParallel(node flux.Node, ctx *flux.Context) (terminated bool) {
	if len(node.Branches) == 0 {
		return false
	}

	var wg sync.WaitGroup
	results := make([]bool, len(node.Branches))
	panics := make([]any, len(node.Branches))

	for i, branch := range node.Branches {
		wg.Add(1)
		go func(i int, branch []flux.Node) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panics[i] = r
				}
			}()
			results[i] = e.walk(branch, ctx)
		}(i, branch)
	}
	wg.Wait()

	for _, p := range panics {
		if p != nil {
			panic(p)
		}
	}
	for _, r := range results {
		if r {
			terminated = true
		}
	}
	return terminated
}

func (e *Executor) executeTry(node flux.Node, ctx *flux.Context) (terminated bool) {
	caught := func() (recovered any) {
		defer func() {
			if r := recover(); r != nil {
				recovered = r
			}
		}()
		terminated = e.walk(node.Try, ctx)
		return nil
	}()

	if caught == nil {
		return terminated
	}

	if node.ErrorVar != "" {
		ctx.Bind(node.ErrorVar, errorToValue(caught))
	}
	return e.walk(node.Catch, ctx)
}

func errorToValue(recovered any) map[string]any {
	if err, ok := recovered.(error); ok {
		return map[string]any{"message": err.Error()}
	}
	return map[string]any{"message": fmt.Sprintf("%v", recovered)}
}

func (e *Executor) executeReturn(node flux.Node, ctx *flux.Context) bool {
	status := node.Status
	if status == 0 {
		status = http.StatusOK
	}
	body := interpolator.Resolve(node.Body, ctx)
	e.writeJSON(ctx, status, body)
	return true
}

func (e *Executor) writeJSON(ctx *flux.Context, status int, body any) {
	if ctx.Responded() {
		return
	}
	ctx.MarkResponded(status)
	if ctx.Response == nil {
		return
	}
	ctx.Response.Header().Set("Content-Type", "application/json")
	ctx.Response.WriteHeader(status)
	if err := json.NewEncoder(ctx.Response).Encode(body); err != nil {
		e.log.Errorw("executor: failed to write response", "error", err)
	}
}

func (e *Executor) writeFailure(ctx *flux.Context) {
	e.writeJSON(ctx, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
}

// BuildContext assembles a fresh Context for one incoming request, with
// Input set to the given map. The caller supplies the already merged
// body/query/path parameters (§4.6); BuildContext does no merging itself.
func BuildContext(stdCtx context.Context, r *http.Request, w http.ResponseWriter, input map[string]any) *flux.Context {
	fluxCtx := flux.NewContext(stdCtx, r, w)
	fluxCtx.Input = input
	return fluxCtx
}

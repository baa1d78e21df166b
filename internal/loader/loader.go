// Package loader populates, at startup and on reload, the two in-memory
// tables the executor reads from: the action table (handler functions
// keyed by path) and the flux table (validated flow definitions keyed by
// "METHOD endpoint"). Both tables are rebuilt off to the side and swapped
// in atomically so concurrent readers never observe a half-built table.
package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/orbitflux/flux/internal/flux"
	"github.com/orbitflux/flux/internal/logger"
	"github.com/orbitflux/flux/internal/validator"
)

// ActionHandler is the signature every registered action must satisfy.
type ActionHandler func(ctx *flux.Context, args map[string]any) (any, error)

// FluxError pairs a source file with the validation errors found in it,
// consumed by the `validate` CLI and the `/flux-errors` debug route.
type FluxError struct {
	File   string            `json:"file"`
	Errors []validator.Error `json:"errors"`
}

// tables is the immutable snapshot swapped in on every (re)load.
type tables struct {
	actions    map[string]ActionHandler
	fluxes     map[string]*flux.Definition
	fluxErrors []FluxError
}

// Loader owns the action/flux roots and the currently active tables.
type Loader struct {
	actionsRoot string
	fluxRoot    string
	log         *logger.Logger

	current atomic.Pointer[tables]

	// static holds actions registered via RegisterAction, which survive
	// every Load/Reload since Go cannot dynamically compile new handler
	// code the way a script-language loader would (see DESIGN.md).
	static map[string]ActionHandler

	cronJob *cron.Cron
}

// New creates a Loader rooted at the given actions/flux directories.
// Either root may be empty or missing — Load then yields an empty table
// and a warning rather than aborting (§4.2 failure semantics).
func New(actionsRoot, fluxRoot string, log *logger.Logger) *Loader {
	l := &Loader{
		actionsRoot: actionsRoot,
		fluxRoot:    fluxRoot,
		log:         log,
		static:      map[string]ActionHandler{},
	}
	l.current.Store(&tables{
		actions: map[string]ActionHandler{},
		fluxes:  map[string]*flux.Definition{},
	})
	return l
}

// RegisterAction statically registers a handler under a path, bypassing
// the `plugin.Open` dynamic-loading route entirely. This is the escape
// hatch the executor and test suites exercise in practice, since this
// repo cannot itself invoke `go build -buildmode=plugin`.
func (l *Loader) RegisterAction(path string, handler ActionHandler) {
	l.static[normalizeActionPath(path)] = handler
}

// GetAction returns the handler registered under path, or nil if none.
func (l *Loader) GetAction(path string) ActionHandler {
	t := l.current.Load()
	if h, ok := t.actions[path]; ok {
		return h
	}
	return nil
}

// LoadFluxDefinitions returns every currently valid flux definition.
func (l *Loader) LoadFluxDefinitions() []*flux.Definition {
	t := l.current.Load()
	defs := make([]*flux.Definition, 0, len(t.fluxes))
	for _, d := range t.fluxes {
		defs = append(defs, d)
	}
	return defs
}

// GetFluxErrors returns the per-file validation failures from the most
// recent load, consumable by the `validate` CLI and debug route.
func (l *Loader) GetFluxErrors() []FluxError {
	t := l.current.Load()
	out := make([]FluxError, len(t.fluxErrors))
	copy(out, t.fluxErrors)
	return out
}

// Reload rebuilds both tables from disk and atomically swaps them in.
// A failure to load any single file never aborts the whole load — it is
// recorded and the walk continues (§4.2).
func (l *Loader) Reload() error {
	actions := l.loadActions()
	for path, handler := range l.static {
		actions[path] = handler
	}
	fluxes, fluxErrors := l.loadFluxes()

	l.current.Store(&tables{
		actions:    actions,
		fluxes:     fluxes,
		fluxErrors: fluxErrors,
	})
	return nil
}

func (l *Loader) loadActions() map[string]ActionHandler {
	actions := map[string]ActionHandler{}
	if l.actionsRoot == "" {
		return actions
	}
	info, err := os.Stat(l.actionsRoot)
	if err != nil || !info.IsDir() {
		l.log.Warnw("loader: actions root missing, using empty action table", "root", l.actionsRoot)
		return actions
	}

	_ = filepath.WalkDir(l.actionsRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			l.log.Warnw("loader: failed to walk action entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		// A compiled handler module is a `.so` plugin; anything else is
		// skipped (the spec's "non-function exports are skipped with a
		// warning" maps, in Go, to "non-plugin files are skipped").
		if filepath.Ext(path) != ".so" {
			return nil
		}
		key, err := filepath.Rel(l.actionsRoot, path)
		if err != nil {
			l.log.Warnw("loader: failed to relativize action path", "path", path, "error", err)
			return nil
		}
		key = normalizeActionPath(strings.TrimSuffix(key, ".so"))
		handler, err := openActionPlugin(path)
		if err != nil {
			l.log.Warnw("loader: failed to load action plugin", "path", path, "error", err)
			return nil
		}
		actions[key] = handler
		return nil
	})
	return actions
}

func normalizeActionPath(p string) string {
	return strings.ReplaceAll(p, string(filepath.Separator), "/")
}

func (l *Loader) loadFluxes() (map[string]*flux.Definition, []FluxError) {
	fluxes := map[string]*flux.Definition{}
	var fluxErrors []FluxError

	if l.fluxRoot == "" {
		return fluxes, fluxErrors
	}
	info, err := os.Stat(l.fluxRoot)
	if err != nil || !info.IsDir() {
		l.log.Warnw("loader: flux root missing, using empty flux table", "root", l.fluxRoot)
		return fluxes, fluxErrors
	}

	_ = filepath.WalkDir(l.fluxRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			fluxErrors = append(fluxErrors, FluxError{File: path, Errors: []validator.Error{{Message: err.Error()}}})
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			fluxErrors = append(fluxErrors, FluxError{File: path, Errors: []validator.Error{{Message: err.Error()}}})
			return nil
		}

		var def flux.Definition
		if err := json.Unmarshal(raw, &def); err != nil {
			fluxErrors = append(fluxErrors, FluxError{File: path, Errors: []validator.Error{{Message: "invalid JSON: " + err.Error()}}})
			return nil
		}
		def.SourceFile = path

		result := validator.Validate(&def)
		if !result.Valid {
			fluxErrors = append(fluxErrors, FluxError{File: path, Errors: result.Errors})
			return nil
		}

		fluxes[def.Key()] = &def
		return nil
	})

	return fluxes, fluxErrors
}

// StartCronReload schedules Reload() to run on the given cron spec
// (e.g. "0 */5 * * * *" for every five minutes), for environments where
// filesystem notifications are unavailable. Grounded on the teacher's
// own robfig/cron usage in internal/queue/scheduler.go.
func (l *Loader) StartCronReload(spec string) error {
	l.cronJob = cron.New(cron.WithSeconds())
	_, err := l.cronJob.AddFunc(spec, func() {
		if err := l.Reload(); err != nil {
			l.log.Errorw("loader: scheduled reload failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	l.cronJob.Start()
	return nil
}

// StopCronReload stops the scheduled reload job, if one was started.
func (l *Loader) StopCronReload() {
	if l.cronJob != nil {
		l.cronJob.Stop()
	}
}

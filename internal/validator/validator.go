// Package validator implements the structural, schema-driven check a flux
// definition must pass before it is admitted to the loader's flux table.
// This is deliberately hand-written rather than struct-tag driven: the
// per-node-type required-field rules and the JSON-pointer-style error
// paths are domain specific in a way a generic schema library does not
// express cleanly (see DESIGN.md).
package validator

import (
	"fmt"

	"github.com/orbitflux/flux/internal/flux"
)

// Error is one validation failure, carrying a dotted/JSON-pointer-style
// path to the offending field so callers (the `validate` CLI, the
// `/flux-errors` debug route) can pinpoint it.
type Error struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e Error) Error() string { return e.Path + ": " + e.Message }

// Result is the outcome of validating one flux definition. All applicable
// rules are checked and every failure is collected — validation never
// fail-fasts on the first error.
type Result struct {
	Valid  bool    `json:"valid"`
	Errors []Error `json:"errors"`
}

func ok() Result { return Result{Valid: true} }

func fail(errs []Error) Result {
	return Result{Valid: false, Errors: errs}
}

// Validate checks a parsed flux definition against the schema described in
// §4.1: required top-level fields, per-node-type required fields, and
// recursive validation of every nested node array. Unknown extra keys are
// tolerated (the JSON decoder already drops them); unknown node types fail.
func Validate(def *flux.Definition) Result {
	var errs []Error

	if def.Endpoint == "" {
		errs = append(errs, Error{"endpoint", "endpoint is required"})
	}
	if def.Method == "" {
		errs = append(errs, Error{"method", "method is required"})
	} else if !isValidMethod(def.Method) {
		errs = append(errs, Error{"method", fmt.Sprintf("unrecognised method %q", def.Method)})
	}
	if len(def.Flow) == 0 {
		errs = append(errs, Error{"flow", "flow must contain at least one node"})
	}

	errs = append(errs, validateNodes(def.Flow, "flow")...)

	if len(errs) > 0 {
		return fail(errs)
	}
	return ok()
}

func isValidMethod(m flux.Method) bool {
	for _, valid := range flux.ValidMethods {
		if m == valid {
			return true
		}
	}
	return false
}

func validateNodes(nodes []flux.Node, path string) []Error {
	var errs []Error
	for i, node := range nodes {
		nodePath := fmt.Sprintf("%s[%d]", path, i)
		errs = append(errs, validateNode(node, nodePath)...)
	}
	return errs
}

func validateNode(node flux.Node, path string) []Error {
	var errs []Error

	switch node.Type {
	case flux.NodeAction:
		if node.Name == "" {
			errs = append(errs, Error{path + ".name", "action requires name"})
		}
		if node.Path == "" {
			errs = append(errs, Error{path + ".path", "action requires path"})
		}

	case flux.NodeCondition:
		if node.If == "" {
			errs = append(errs, Error{path + ".if", "condition requires if"})
		}
		if len(node.Then) == 0 {
			errs = append(errs, Error{path + ".then", "condition requires then"})
		}
		errs = append(errs, validateNodes(node.Then, path+".then")...)
		errs = append(errs, validateNodes(node.Else, path+".else")...)

	case flux.NodeForEach:
		if node.Items == "" {
			errs = append(errs, Error{path + ".items", "forEach requires items"})
		}
		if node.As == "" {
			errs = append(errs, Error{path + ".as", "forEach requires as"})
		}
		if len(node.Do) == 0 {
			errs = append(errs, Error{path + ".do", "forEach requires do"})
		}
		errs = append(errs, validateNodes(node.Do, path+".do")...)

	case flux.NodeParallel:
		if len(node.Branches) == 0 {
			errs = append(errs, Error{path + ".branches", "parallel requires branches"})
		}
		for i, branch := range node.Branches {
			errs = append(errs, validateNodes(branch, fmt.Sprintf("%s.branches[%d]", path, i))...)
		}

	case flux.NodeTry:
		if len(node.Try) == 0 {
			errs = append(errs, Error{path + ".try", "try requires try"})
		}
		if len(node.Catch) == 0 {
			errs = append(errs, Error{path + ".catch", "try requires catch"})
		}
		errs = append(errs, validateNodes(node.Try, path+".try")...)
		errs = append(errs, validateNodes(node.Catch, path+".catch")...)

	case flux.NodeReturn:
		if node.Body == nil {
			errs = append(errs, Error{path + ".body", "return requires body"})
		}

	default:
		errs = append(errs, Error{path + ".type", fmt.Sprintf("unknown node type %q", node.Type)})
	}

	return errs
}

// Package toolregistry holds the tool catalog: static registrations,
// plugin registrations, the scope/permission matrix, and invocation
// with schema validation and result-size truncation.
//
// Grounded on a prior internal/tools/policy (Profile/Policy/Resolver
// scope model) generalized from per-profile tool groups into the
// smaller always/dm-only/group-only/admin-only matrix this kernel
// needs, plus a prior internal/tools executor dispatch shape.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// MaxToolResultBytes bounds a tool's raw result before it is truncated
// and appended to the transcript, keeping one misbehaving tool call
// from blowing the context budget in a single turn.
const MaxToolResultBytes = 16 * 1024

// Executor runs one tool call and returns its raw JSON-able result.
type Executor func(ctx context.Context, dc domain.DispatchContext, params json.RawMessage) (any, error)

type registration struct {
	def      domain.ToolDefinition
	exec     Executor
	schema   *jsonschema.Schema
	plugin   string // empty for built-in tools
}

// Registry is the live tool catalog. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registration

	// overrides holds persisted ToolConfig rows, applied over the
	// static registration at dispatch time.
	overrides map[string]domain.ToolConfig
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		tools:     make(map[string]registration),
		overrides: make(map[string]domain.ToolConfig),
	}
}

// Register adds a built-in tool. Compiling the schema happens once,
// here, so a malformed schema fails fast at startup rather than on
// first invocation.
func (r *Registry) Register(def domain.ToolDefinition, exec Executor) error {
	return r.register(def, exec, "")
}

// RegisterPluginTool adds a tool owned by a loaded plugin, tagged with
// the plugin's name so UnregisterPlugin can remove all of its tools
// together.
func (r *Registry) RegisterPluginTool(plugin string, def domain.ToolDefinition, exec Executor) error {
	return r.register(def, exec, plugin)
}

func (r *Registry) register(def domain.ToolDefinition, exec Executor, plugin string) error {
	var compiled *jsonschema.Schema
	if len(def.ParametersSchema) > 0 {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(def.Name+".json", bytesReader(def.ParametersSchema)); err != nil {
			return errkind.New(errkind.Schema, "add tool schema resource", err)
		}
		sch, err := c.Compile(def.Name + ".json")
		if err != nil {
			return errkind.New(errkind.Schema, "compile tool schema", err)
		}
		compiled = sch
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = registration{def: def, exec: exec, schema: compiled, plugin: plugin}
	return nil
}

// UnregisterPlugin removes every tool registered under a plugin name.
func (r *Registry) UnregisterPlugin(plugin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, reg := range r.tools {
		if reg.plugin == plugin {
			delete(r.tools, name)
		}
	}
}

// ApplyOverride installs a persisted ToolConfig row, consulted by
// VisibleTools and Invoke ahead of the static registration.
func (r *Registry) ApplyOverride(cfg domain.ToolConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[cfg.ToolName] = cfg
}

// VisibleTools returns the tool definitions a caller in dc may invoke,
// with overrides applied and disabled tools filtered out.
func (r *Registry) VisibleTools(dc domain.DispatchContext) []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.ToolDefinition
	for name, reg := range r.tools {
		def := reg.def
		if ov, ok := r.overrides[name]; ok {
			if !ov.Enabled {
				continue
			}
			if ov.Scope != nil {
				def.Scope = *ov.Scope
			}
		}
		if scopeAllows(def.Scope, dc) {
			out = append(out, def)
		}
	}
	return out
}

// scopeAllows applies the always/dm-only/group-only/admin-only matrix.
func scopeAllows(scope domain.ToolScope, dc domain.DispatchContext) bool {
	switch scope {
	case domain.ScopeAlways:
		return true
	case domain.ScopeDMOnly:
		return !dc.IsGroup
	case domain.ScopeGroupOnly:
		return dc.IsGroup
	case domain.ScopeAdminOnly:
		return dc.IsAdmin
	default:
		return true
	}
}

// Invoke validates params against the tool's schema, checks scope,
// runs the executor, and truncates an oversized result.
func (r *Registry) Invoke(ctx context.Context, dc domain.DispatchContext, name string, params json.RawMessage) (any, error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	ov, hasOv := r.overrides[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errkind.New(errkind.ToolExecute, fmt.Sprintf("unknown tool %q", name), nil)
	}

	scope := reg.def.Scope
	if hasOv {
		if !ov.Enabled {
			return nil, errkind.New(errkind.ToolExecute, fmt.Sprintf("tool %q is disabled", name), nil)
		}
		if ov.Scope != nil {
			scope = *ov.Scope
		}
	}
	if !scopeAllows(scope, dc) {
		return nil, errkind.New(errkind.ToolValidate, fmt.Sprintf("tool %q not permitted in this context", name), nil)
	}

	if reg.schema != nil {
		var v any
		if err := json.Unmarshal(params, &v); err != nil {
			return nil, errkind.New(errkind.ToolValidate, "parse tool params", err)
		}
		if err := reg.schema.Validate(v); err != nil {
			return nil, errkind.New(errkind.ToolValidate, "validate tool params", err)
		}
	}

	result, err := reg.exec(ctx, dc, params)
	if err != nil {
		return nil, errkind.New(errkind.ToolExecute, fmt.Sprintf("tool %q execution failed", name), err)
	}

	return truncateResult(result), nil
}

// truncateResult caps a tool's serialized result at MaxToolResultBytes,
// returning the original value if it already fits. An oversized result
// becomes a {"truncated": true, "data": ...} marker holding a prefix of
// the serialized result, sized so the marker itself serializes within
// MaxToolResultBytes.
func truncateResult(result any) any {
	raw, err := json.Marshal(result)
	if err != nil || len(raw) <= MaxToolResultBytes {
		return result
	}
	n := MaxToolResultBytes
	for {
		wrapped := map[string]any{"truncated": true, "data": string(raw[:n])}
		out, err := json.Marshal(wrapped)
		if err != nil || len(out) <= MaxToolResultBytes || n == 0 {
			return wrapped
		}
		n -= len(out) - MaxToolResultBytes
		if n < 0 {
			n = 0
		}
	}
}

// Definitions returns every registered tool, ignoring scope, for the
// tool index to embed and search over.
func (r *Registry) Definitions() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ToolDefinition, 0, len(r.tools))
	for _, reg := range r.tools {
		out = append(out, reg.def)
	}
	return out
}

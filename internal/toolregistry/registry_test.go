package toolregistry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/therenovatio/teleton/internal/domain"
)

func mustRegister(t *testing.T, r *Registry, def domain.ToolDefinition, exec Executor) {
	t.Helper()
	if err := r.Register(def, exec); err != nil {
		t.Fatalf("register %s: %v", def.Name, err)
	}
}

func TestScopeMatrix(t *testing.T) {
	r := New()
	mustRegister(t, r, domain.ToolDefinition{Name: "always", Scope: domain.ScopeAlways}, noopExec)
	mustRegister(t, r, domain.ToolDefinition{Name: "dm", Scope: domain.ScopeDMOnly}, noopExec)
	mustRegister(t, r, domain.ToolDefinition{Name: "group", Scope: domain.ScopeGroupOnly}, noopExec)
	mustRegister(t, r, domain.ToolDefinition{Name: "admin", Scope: domain.ScopeAdminOnly}, noopExec)

	dm := domain.DispatchContext{IsGroup: false, IsAdmin: false}
	visible := names(r.VisibleTools(dm))
	assertContains(t, visible, "always", "dm")
	assertNotContains(t, visible, "group", "admin")

	group := domain.DispatchContext{IsGroup: true, IsAdmin: false}
	visible = names(r.VisibleTools(group))
	assertContains(t, visible, "always", "group")
	assertNotContains(t, visible, "dm", "admin")

	admin := domain.DispatchContext{IsGroup: true, IsAdmin: true}
	visible = names(r.VisibleTools(admin))
	assertContains(t, visible, "always", "group", "admin")
}

func TestInvokeValidatesSchema(t *testing.T) {
	r := New()
	schema := []byte(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
	mustRegister(t, r, domain.ToolDefinition{Name: "greet", Scope: domain.ScopeAlways, ParametersSchema: schema}, noopExec)

	dc := domain.DispatchContext{}
	_, err := r.Invoke(context.Background(), dc, "greet", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected validation error for missing required field")
	}

	_, err = r.Invoke(context.Background(), dc, "greet", json.RawMessage(`{"name":"ok"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvokeDisabledOverride(t *testing.T) {
	r := New()
	mustRegister(t, r, domain.ToolDefinition{Name: "toggle", Scope: domain.ScopeAlways}, noopExec)
	r.ApplyOverride(domain.ToolConfig{ToolName: "toggle", Enabled: false})

	_, err := r.Invoke(context.Background(), domain.DispatchContext{}, "toggle", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected disabled tool to fail")
	}
}

func TestUnregisterPlugin(t *testing.T) {
	r := New()
	if err := r.RegisterPluginTool("p1", domain.ToolDefinition{Name: "a", Scope: domain.ScopeAlways}, noopExec); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.RegisterPluginTool("p1", domain.ToolDefinition{Name: "b", Scope: domain.ScopeAlways}, noopExec); err != nil {
		t.Fatalf("register: %v", err)
	}
	mustRegister(t, r, domain.ToolDefinition{Name: "core", Scope: domain.ScopeAlways}, noopExec)

	r.UnregisterPlugin("p1")
	visible := names(r.VisibleTools(domain.DispatchContext{}))
	assertContains(t, visible, "core")
	assertNotContains(t, visible, "a", "b")
}

func noopExec(ctx context.Context, dc domain.DispatchContext, params json.RawMessage) (any, error) {
	return map[string]string{"ok": "true"}, nil
}

func names(defs []domain.ToolDefinition) map[string]bool {
	out := make(map[string]bool, len(defs))
	for _, d := range defs {
		out[d.Name] = true
	}
	return out
}

func assertContains(t *testing.T, set map[string]bool, names ...string) {
	t.Helper()
	for _, n := range names {
		if !set[n] {
			t.Fatalf("expected %q to be visible", n)
		}
	}
}

func assertNotContains(t *testing.T, set map[string]bool, names ...string) {
	t.Helper()
	for _, n := range names {
		if set[n] {
			t.Fatalf("expected %q to not be visible", n)
		}
	}
}

package rpc

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance every tool handler's bound
// argument struct is checked against after JSON decoding, mirroring a
// single package-level *validator.Validate rather than one per call site.
var validate = validator.New()

// Handler executes one tool call against already-decoded, already-
// validated arguments and returns the JSON-serializable result or an
// error to be folded into the isError envelope.
type Handler func(raw json.RawMessage) (any, error)

// Tool is one registered tool's schema and handler.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handle      Handler
}

// Registry is the named tool registry backing tools/list and tools/call.
type Registry struct {
	tools   []*Tool
	byName  map[string]*Tool
	aliases map[string]string // legacy tool-name aliasing
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Tool), aliases: make(map[string]string)}
}

// Register adds a tool. Panics on duplicate name, since that is a wiring
// bug caught at startup, not a runtime condition.
func (r *Registry) Register(t Tool) {
	if _, exists := r.byName[t.Name]; exists {
		panic("rpc: duplicate tool registration: " + t.Name)
	}
	tool := &t
	r.tools = append(r.tools, tool)
	r.byName[t.Name] = tool
}

// Alias registers oldName as a legacy synonym for newName, so renamed
// tools keep working for coordinators built against an earlier schema.
func (r *Registry) Alias(oldName, newName string) {
	r.aliases[oldName] = newName
}

// Resolve returns the tool registered under name, following one level of
// alias indirection.
func (r *Registry) Resolve(name string) (*Tool, bool) {
	if t, ok := r.byName[name]; ok {
		return t, true
	}
	if target, ok := r.aliases[name]; ok {
		t, ok := r.byName[target]
		return t, ok
	}
	return nil, false
}

// List returns every registered tool's public schema, in registration
// order.
func (r *Registry) List() []*Tool {
	return r.tools
}

// decodeAndValidate unmarshals raw into dst and runs struct-tag
// validation against it. Tool handlers call this first so every argument
// error surfaces as a validation failure before any domain logic runs.
func decodeAndValidate(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

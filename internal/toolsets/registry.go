package toolsets

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/rpcerr"
)

// EnableAll is the toolset name that enables every registered toolset.
const EnableAll = "all"

// Registry construction errors
var (
	ErrDuplicateTool    = errors.New("duplicate tool name")
	ErrDuplicateToolset = errors.New("duplicate toolset name")
	ErrUnknownToolset   = errors.New("unknown toolset")
	ErrInvalidSchema    = errors.New("invalid tool input schema")
)

// Builder collects toolsets during startup and produces an immutable
// Registry.
type Builder struct {
	readOnly bool
	timeout  time.Duration
	toolsets []*Toolset
	enable   []string
}

// NewBuilder creates a Builder. In read-only mode every toolset is forced
// read-only and mutating tools are neither listed nor invocable.
func NewBuilder(readOnly bool) *Builder {
	return &Builder{readOnly: readOnly}
}

// AddToolset registers a toolset. Registration order is the listing order.
func (b *Builder) AddToolset(ts *Toolset) *Builder {
	b.toolsets = append(b.toolsets, ts)
	return b
}

// Enable marks toolsets by name as enabled. EnableAll enables all of them.
func (b *Builder) Enable(names ...string) *Builder {
	b.enable = append(b.enable, names...)
	return b
}

// WithTimeout bounds each tool invocation, including backend retries.
// Zero means no bound.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// Build validates the configuration and freezes it. Duplicate tool names,
// duplicate toolset names, unknown enabled toolsets and unresolvable input
// schemas are errors.
func (b *Builder) Build() (*Registry, error) {
	byName := make(map[string]*Toolset, len(b.toolsets))
	toolOwner := make(map[string]string)
	for _, ts := range b.toolsets {
		if _, exists := byName[ts.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateToolset, ts.Name)
		}
		byName[ts.Name] = ts
		for _, st := range ts.tools {
			if owner, exists := toolOwner[st.Tool.Name]; exists {
				return nil, fmt.Errorf("%w: %q registered by toolsets %s and %s",
					ErrDuplicateTool, st.Tool.Name, owner, ts.Name)
			}
			toolOwner[st.Tool.Name] = ts.Name
		}
	}

	for _, name := range b.enable {
		if name == EnableAll {
			for _, ts := range b.toolsets {
				ts.Enabled = true
			}
			continue
		}
		ts, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownToolset, name)
		}
		ts.Enabled = true
	}

	r := &Registry{
		readOnly: b.readOnly,
		timeout:  b.timeout,
		index:    make(map[string]*entry),
	}
	for _, ts := range b.toolsets {
		if b.readOnly {
			ts.SetReadOnly()
		}
		info := ToolsetInfo{
			Name:        ts.Name,
			Description: ts.Description,
			Enabled:     ts.Enabled,
			ReadOnly:    ts.ReadOnly(),
		}
		for _, st := range ts.ActiveTools() {
			info.Tools = append(info.Tools, st.Tool.Name)
		}
		r.toolsets = append(r.toolsets, info)

		if !ts.Enabled {
			continue
		}
		for _, st := range ts.ActiveTools() {
			schema := st.Tool.InputSchema
			if schema == nil {
				schema = &jsonschema.Schema{Type: "object"}
				st.Tool.InputSchema = schema
			}
			resolved, err := schema.Resolve(nil)
			if err != nil {
				return nil, fmt.Errorf("%w for %s: %v", ErrInvalidSchema, st.Tool.Name, err)
			}
			r.index[st.Tool.Name] = &entry{tool: st.Tool, handler: st.Handler, schema: resolved}
			r.tools = append(r.tools, st.Tool)
		}
	}

	logger.Infof("Tool registry built: %d tools across %d toolsets (read-only: %t)",
		len(r.tools), len(r.toolsets), r.readOnly)
	return r, nil
}

// ToolsetInfo is a read-only snapshot of a toolset.
type ToolsetInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Enabled     bool     `json:"enabled"`
	ReadOnly    bool     `json:"readOnly"`
	Tools       []string `json:"tools"`
}

type entry struct {
	tool    Tool
	handler Handler
	schema  *jsonschema.Resolved
}

// Registry is the frozen set of enabled tools. It is never mutated after
// Build, so concurrent reads need no locking.
type Registry struct {
	readOnly bool
	timeout  time.Duration
	toolsets []ToolsetInfo
	tools    []Tool
	index    map[string]*entry
}

// ReadOnly reports whether the registry was built in read-only mode.
func (r *Registry) ReadOnly() bool {
	return r.readOnly
}

// List returns the tools of all enabled toolsets, in toolset registration
// order and then per-toolset insertion order.
func (r *Registry) List() []Tool {
	return slices.Clone(r.tools)
}

// Toolsets returns a snapshot of every registered toolset.
func (r *Registry) Toolsets() []ToolsetInfo {
	out := make([]ToolsetInfo, len(r.toolsets))
	for i, info := range r.toolsets {
		info.Tools = slices.Clone(info.Tools)
		out[i] = info
	}
	return out
}

// Lookup finds an invocable tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	e, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return e.tool, true
}

type outcome struct {
	result *ToolResult
	err    error
}

// Invoke validates the arguments and runs the tool. Unknown, disabled and
// read-only-filtered tools fail with ToolNotFound; schema mismatches fail
// with InvalidArguments. Every other failure, including handler panics and
// the invocation timeout, is returned as a result with IsError set.
func (r *Registry) Invoke(ctx context.Context, scope auth.Scope, inv ToolInvocation) (*ToolResult, error) {
	e, ok := r.index[inv.Name]
	if !ok {
		return nil, rpcerr.New(rpcerr.ToolNotFound, "tool %q not found", inv.Name)
	}

	args := inv.Arguments
	if args == nil {
		args = Arguments{}
	}
	if err := e.schema.Validate(map[string]any(args)); err != nil {
		return nil, rpcerr.Wrap(rpcerr.InvalidArguments, err, "invalid arguments for tool %s", inv.Name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	callID := uuid.NewString()
	logger.Debugf("Invoking tool %s (call %s)", inv.Name, callID)

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: rpcerr.New(rpcerr.InternalError, "tool %s panicked: %v", inv.Name, p)}
			}
		}()
		result, err := e.handler.Invoke(ctx, scope, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			logger.Warnf("Tool %s (call %s) failed: %v", inv.Name, callID, o.err)
			return ErrorResult(o.err), nil
		}
		if o.result == nil {
			return &ToolResult{Content: []Content{}}, nil
		}
		return o.result, nil
	case <-ctx.Done():
		logger.Warnf("Tool %s (call %s) abandoned: %v", inv.Name, callID, ctx.Err())
		return ErrorResult(rpcerr.Wrap(rpcerr.Timeout, ctx.Err(), "tool %s did not complete", inv.Name)), nil
	}
}

package toolsets

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Toolset is a named group of related tools that is enabled or disabled as
// a unit.
type Toolset struct {
	Name        string
	Description string
	Enabled     bool
	readOnly    bool
	tools       []ServerTool
}

// NewToolset creates an empty, disabled toolset.
func NewToolset(name, description string) *Toolset {
	return &Toolset{Name: name, Description: description}
}

// AddReadTools appends tools that only read remote state.
func (t *Toolset) AddReadTools(tools ...ServerTool) *Toolset {
	return t.add(true, tools)
}

// AddWriteTools appends tools that change remote state.
func (t *Toolset) AddWriteTools(tools ...ServerTool) *Toolset {
	return t.add(false, tools)
}

func (t *Toolset) add(readOnly bool, tools []ServerTool) *Toolset {
	for _, st := range tools {
		annotations := sdkmcp.ToolAnnotations{}
		if st.Tool.Annotations != nil {
			annotations = *st.Tool.Annotations
		}
		annotations.ReadOnlyHint = readOnly
		st.Tool.Annotations = &annotations
		t.tools = append(t.tools, st)
	}
	return t
}

// ReadOnly reports whether the toolset hides its mutating tools.
func (t *Toolset) ReadOnly() bool {
	return t.readOnly
}

// SetReadOnly hides mutating tools from ActiveTools.
func (t *Toolset) SetReadOnly() *Toolset {
	t.readOnly = true
	return t
}

// AllTools returns every tool in insertion order, including mutating ones.
func (t *Toolset) AllTools() []ServerTool {
	out := make([]ServerTool, len(t.tools))
	copy(out, t.tools)
	return out
}

// ActiveTools returns the tools exposed by this toolset in insertion order.
// Mutating tools are dropped when the toolset is read-only.
func (t *Toolset) ActiveTools() []ServerTool {
	out := make([]ServerTool, 0, len(t.tools))
	for _, st := range t.tools {
		if t.readOnly && st.Tool.Mutating() {
			continue
		}
		out = append(out, st)
	}
	return out
}

// Package diagram holds the typed cell model of the diagram markup and the
// tokenizer that turns fragment text into cells.
package diagram

import (
	"strconv"
)

// Element and attribute names of the markup.
const (
	ElementCell     = "mxCell"
	ElementGeometry = "mxGeometry"

	AttrID       = "id"
	AttrParent   = "parent"
	AttrSource   = "source"
	AttrTarget   = "target"
	AttrVertex   = "vertex"
	AttrEdge     = "edge"
	AttrStyle    = "style"
	AttrValue    = "value"
	AttrRelative = "relative"
)

// Scaffold ids injected by the wrapper. Generators never emit them.
const (
	RootID  = "0"
	LayerID = "1"
)

// IsReservedID reports whether id belongs to the document scaffold.
func IsReservedID(id string) bool {
	return id == RootID || id == LayerID
}

// Kind is the element class of a cell
type Kind string

const (
	KindVertex Kind = "vertex"
	KindEdge   Kind = "edge"
)

// Attr is one attribute in source order
type Attr struct {
	Name  string
	Value string
}

// Geometry is the single permitted child of a cell.
// Inner keeps nested geometry markup (waypoint arrays, offsets) verbatim.
type Geometry struct {
	Attrs []Attr
	Inner string
}

// Get returns the named geometry attribute
func (g *Geometry) Get(name string) (string, bool) {
	if g == nil {
		return "", false
	}
	return lookup(g.Attrs, name)
}

func (g *Geometry) number(name string) float64 {
	v, ok := g.Get(name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func (g *Geometry) X() float64      { return g.number("x") }
func (g *Geometry) Y() float64      { return g.number("y") }
func (g *Geometry) Width() float64  { return g.number("width") }
func (g *Geometry) Height() float64 { return g.number("height") }

// Relative reports the edge-geometry relative flag
func (g *Geometry) Relative() bool {
	v, _ := g.Get(AttrRelative)
	return v == "1"
}

// Cell is one diagram element.
//
// Attrs is the source of truth for serialization and keeps every attribute,
// including id/parent/source/target, in the order the generator wrote them.
// The typed fields mirror those attributes for lookups.
type Cell struct {
	ID       string
	Kind     Kind
	Parent   string
	Source   string
	Target   string
	Attrs    []Attr
	Geometry *Geometry

	// Container is the id of the cell that textually encloses this one.
	// Empty for well-formed flat siblings.
	Container string
}

// Attr returns the named attribute
func (c Cell) Attr(name string) (string, bool) {
	return lookup(c.Attrs, name)
}

func (c Cell) Style() string {
	v, _ := c.Attr(AttrStyle)
	return v
}

func (c Cell) Value() string {
	v, _ := c.Attr(AttrValue)
	return v
}

func (c Cell) IsEdge() bool { return c.Kind == KindEdge }

// SetAttr overwrites or appends an attribute and keeps the typed fields in sync.
func (c *Cell) SetAttr(name, value string) {
	replaced := false
	for i := range c.Attrs {
		if c.Attrs[i].Name == name {
			c.Attrs[i].Value = value
			replaced = true
			break
		}
	}
	if !replaced {
		c.Attrs = append(c.Attrs, Attr{Name: name, Value: value})
	}
	switch name {
	case AttrID:
		c.ID = value
	case AttrParent:
		c.Parent = value
	case AttrSource:
		c.Source = value
	case AttrTarget:
		c.Target = value
	}
}

// Clone returns a deep copy
func (c Cell) Clone() Cell {
	out := c
	out.Attrs = append([]Attr(nil), c.Attrs...)
	if c.Geometry != nil {
		g := *c.Geometry
		g.Attrs = append([]Attr(nil), c.Geometry.Attrs...)
		out.Geometry = &g
	}
	return out
}

// References returns the ids this cell points at, keyed by attribute name.
// Empty references are omitted.
func (c Cell) References() []Attr {
	refs := make([]Attr, 0, 3)
	if c.Parent != "" {
		refs = append(refs, Attr{Name: AttrParent, Value: c.Parent})
	}
	if c.Kind == KindEdge {
		if c.Source != "" {
			refs = append(refs, Attr{Name: AttrSource, Value: c.Source})
		}
		if c.Target != "" {
			refs = append(refs, Attr{Name: AttrTarget, Value: c.Target})
		}
	}
	return refs
}

func lookup(attrs []Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

package diagram

import (
	"fmt"

	"diagram_engine/pkg"
)

// Document is an ordered arena of cells keyed by id.
// Cells refer to each other by id only, so removals never leave dangling pointers.
type Document struct {
	order []string
	cells map[string]Cell
}

// NewDocument indexes cells. Every repeated id is reported.
func NewDocument(cells []Cell) (*Document, error) {
	d := &Document{
		order: make([]string, 0, len(cells)),
		cells: make(map[string]Cell, len(cells)),
	}
	var diags []pkg.Diagnostic
	for _, c := range cells {
		if _, dup := d.cells[c.ID]; dup {
			diags = append(diags, pkg.Diagnostic{
				Code:    pkg.CodeDuplicateID,
				CellID:  c.ID,
				Message: fmt.Sprintf("id %q appears more than once", c.ID),
			})
			continue
		}
		d.order = append(d.order, c.ID)
		d.cells[c.ID] = c
	}
	if len(diags) > 0 {
		return nil, pkg.NewError(pkg.CodeStructuralValidationFailed, "document has duplicate ids", diags...)
	}
	return d, nil
}

func (d *Document) Len() int { return len(d.order) }

func (d *Document) Has(id string) bool {
	_, ok := d.cells[id]
	return ok
}

func (d *Document) Get(id string) (Cell, bool) {
	c, ok := d.cells[id]
	return c, ok
}

// Cells returns the cells in document order
func (d *Document) Cells() []Cell {
	out := make([]Cell, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.cells[id])
	}
	return out
}

// Clone copies the arena. Cells are values, so the copy shares nothing mutable
// with the original as long as callers go through Replace.
func (d *Document) Clone() *Document {
	c := &Document{
		order: append([]string(nil), d.order...),
		cells: make(map[string]Cell, len(d.cells)),
	}
	for id, cell := range d.cells {
		c.cells[id] = cell
	}
	return c
}

// Insert appends a cell. It reports false when the id is taken.
func (d *Document) Insert(c Cell) bool {
	if d.Has(c.ID) {
		return false
	}
	d.order = append(d.order, c.ID)
	d.cells[c.ID] = c
	return true
}

// Replace swaps the cell with the same id in place. It reports false when absent.
func (d *Document) Replace(c Cell) bool {
	if !d.Has(c.ID) {
		return false
	}
	d.cells[c.ID] = c
	return true
}

// Remove drops every id in the set, keeping the order of the survivors.
func (d *Document) Remove(ids map[string]struct{}) {
	if len(ids) == 0 {
		return
	}
	kept := d.order[:0]
	for _, id := range d.order {
		if _, drop := ids[id]; drop {
			delete(d.cells, id)
			continue
		}
		kept = append(kept, id)
	}
	d.order = kept
}

// Children returns the ids whose parent is id, in document order.
func (d *Document) Children(id string) []string {
	var out []string
	for _, cid := range d.order {
		if d.cells[cid].Parent == id {
			out = append(out, cid)
		}
	}
	return out
}

// String serializes the cells without scaffolding.
func (d *Document) String() string {
	return Serialize(d.Cells())
}

package document

import (
	"fmt"

	"diagram_engine/internal/diagram"
	"diagram_engine/pkg"
)

// Validate checks a flat cell sequence, scaffold excluded:
//   - ids are unique and not reserved
//   - no cell was textually nested in another
//   - every parent resolves to a cell or a scaffold id, and parent chains are acyclic
//   - every edge endpoint that is set resolves
//
// All violations are collected into one StructuralValidationFailed error.
func Validate(cells []diagram.Cell) error {
	var diags []pkg.Diagnostic
	add := func(d pkg.Diagnostic) { diags = append(diags, d) }

	known := make(map[string]diagram.Cell, len(cells))
	for _, c := range cells {
		if diagram.IsReservedID(c.ID) {
			add(pkg.Diagnostic{
				Code:    pkg.CodeReservedID,
				CellID:  c.ID,
				Message: fmt.Sprintf("id %q is reserved for the document scaffold", c.ID),
			})
			continue
		}
		if _, dup := known[c.ID]; dup {
			add(pkg.Diagnostic{
				Code:    pkg.CodeDuplicateID,
				CellID:  c.ID,
				Message: fmt.Sprintf("id %q appears more than once", c.ID),
			})
			continue
		}
		known[c.ID] = c
	}
	exists := func(id string) bool {
		_, ok := known[id]
		return ok || diagram.IsReservedID(id)
	}

	for _, c := range cells {
		if c.Container != "" {
			add(pkg.Diagnostic{
				Code:    pkg.CodeIllegalNesting,
				CellID:  c.ID,
				Ref:     c.Container,
				Message: fmt.Sprintf("cell %q is nested inside cell %q; cells must be flat siblings", c.ID, c.Container),
			})
		}

		switch {
		case c.Parent == "":
			add(parentDiag(c, "cell has no parent"))
		case c.Parent == c.ID:
			add(parentDiag(c, "cell is its own parent"))
		case !exists(c.Parent):
			add(parentDiag(c, fmt.Sprintf("parent %q does not exist", c.Parent)))
		}

		if c.IsEdge() {
			for _, end := range []struct{ field, id string }{
				{diagram.AttrSource, c.Source},
				{diagram.AttrTarget, c.Target},
			} {
				if end.id == "" || exists(end.id) {
					continue
				}
				add(pkg.Diagnostic{
					Code:    pkg.CodeInvalidEdgeEndpoint,
					CellID:  c.ID,
					Field:   end.field,
					Ref:     end.id,
					Message: fmt.Sprintf("edge %q %s %q does not exist", c.ID, end.field, end.id),
				})
			}
		}
	}

	for _, id := range parentCycles(cells, known) {
		c := known[id]
		add(parentDiag(c, "parent chain forms a cycle"))
	}

	if len(diags) > 0 {
		return pkg.NewError(pkg.CodeStructuralValidationFailed,
			fmt.Sprintf("%d structural violation(s)", len(diags)), diags...)
	}
	return nil
}

func parentDiag(c diagram.Cell, msg string) pkg.Diagnostic {
	return pkg.Diagnostic{
		Code:    pkg.CodeInvalidParentReference,
		CellID:  c.ID,
		Field:   diagram.AttrParent,
		Ref:     c.Parent,
		Message: msg,
	}
}

// parentCycles returns the ids on parent cycles, in document order.
// Self-parents are reported separately and skipped here.
func parentCycles(cells []diagram.Cell, known map[string]diagram.Cell) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(known))
	onCycle := make(map[string]bool)

	for _, start := range cells {
		if state[start.ID] != unvisited {
			continue
		}
		var path []string
		id := start.ID
		for {
			c, ok := known[id]
			if !ok || state[id] == done || c.Parent == id {
				break
			}
			if state[id] == visiting {
				for i := len(path) - 1; i >= 0; i-- {
					onCycle[path[i]] = true
					if path[i] == id {
						break
					}
				}
				break
			}
			state[id] = visiting
			path = append(path, id)
			id = c.Parent
		}
		for _, p := range path {
			state[p] = done
		}
	}

	var out []string
	for _, c := range cells {
		if onCycle[c.ID] {
			out = append(out, c.ID)
			onCycle[c.ID] = false
		}
	}
	return out
}

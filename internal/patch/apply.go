package patch

import (
	"fmt"

	"diagram_engine/internal/diagram"
	"diagram_engine/pkg"
	"diagram_engine/src/logger"
)

// Apply evaluates ops in order against a working copy of doc. doc is never
// modified. If any operation fails the whole batch is rejected: the result is
// doc itself together with a PatchRejected error listing every failure.
//
// Deletes cascade over the document as it stood before the batch, so an
// operation that targets a cell removed earlier in the batch fails, an Add
// that would bring the id back included.
// Deleting a cell already removed by an earlier cascade is a no-op.
func Apply(doc *diagram.Document, ops []Operation) (*diagram.Document, error) {
	work := doc.Clone()
	removed := make(map[string]struct{})
	var diags []pkg.Diagnostic

	fail := func(i int, op Operation, code pkg.Code, msg string) {
		diags = append(diags, pkg.Diagnostic{
			Code:      code,
			CellID:    op.Target(),
			Operation: i + 1,
			Message:   msg,
		})
	}

	for i, op := range ops {
		switch o := op.(type) {
		case Add:
			if _, gone := removed[o.ID]; gone {
				fail(i, op, pkg.CodeUnknownCell, unknownMessage("add", o.ID, removed))
				continue
			}
			if work.Has(o.ID) {
				fail(i, op, pkg.CodeDuplicateID, fmt.Sprintf("cannot add %q: id already exists", o.ID))
				continue
			}
			cell, err := payloadCell(o.ID, o.Payload)
			if err != nil {
				for _, d := range pkg.DiagnosticsOf(err) {
					fail(i, op, d.Code, d.Message)
				}
				continue
			}
			work.Insert(cell)

		case Update:
			if !work.Has(o.ID) {
				fail(i, op, pkg.CodeUnknownCell, unknownMessage("update", o.ID, removed))
				continue
			}
			cell, err := payloadCell(o.ID, o.Payload)
			if err != nil {
				for _, d := range pkg.DiagnosticsOf(err) {
					fail(i, op, d.Code, d.Message)
				}
				continue
			}
			work.Replace(cell)

		case Delete:
			if _, gone := removed[o.ID]; gone && !work.Has(o.ID) {
				continue
			}
			if !work.Has(o.ID) {
				fail(i, op, pkg.CodeUnknownCell, unknownMessage("delete", o.ID, removed))
				continue
			}
			graph := work
			if doc.Has(o.ID) {
				graph = doc
			}
			set := Cascade(graph, o.ID)
			for id := range set {
				if !work.Has(id) {
					delete(set, id)
					continue
				}
				removed[id] = struct{}{}
			}
			work.Remove(set)

		default:
			fail(i, op, pkg.CodeInvalidOperation, fmt.Sprintf("unsupported operation %T", op))
		}
	}

	if len(diags) > 0 {
		logger.Info().Int("operations", len(ops)).Int("failures", len(diags)).Msg("patch batch rejected")
		return doc, pkg.NewError(pkg.CodePatchRejected,
			fmt.Sprintf("%d of %d operation(s) failed, no changes applied", len(diags), len(ops)), diags...)
	}
	logger.Debug().Int("operations", len(ops)).Int("removed", len(removed)).Msg("patch batch applied")
	return work, nil
}

func unknownMessage(verb, id string, removed map[string]struct{}) string {
	if _, ok := removed[id]; ok {
		return fmt.Sprintf("cannot %s %q: it was removed by an earlier delete in this batch", verb, id)
	}
	return fmt.Sprintf("cannot %s %q: no such cell", verb, id)
}

// payloadCell parses an add/update payload and checks its id.
func payloadCell(id, payload string) (diagram.Cell, error) {
	cell, err := diagram.ParseCell(payload)
	if err != nil {
		return diagram.Cell{}, err
	}
	if cell.ID != id {
		return diagram.Cell{}, pkg.NewError(pkg.CodeMalformedFragment, "payload id mismatch", pkg.Diagnostic{
			Code:    pkg.CodeMalformedFragment,
			CellID:  id,
			Field:   diagram.AttrID,
			Ref:     cell.ID,
			Message: fmt.Sprintf("payload id %q does not match cell_id %q", cell.ID, id),
		})
	}
	return cell, nil
}

// Cascade returns id, every cell whose parent chain reaches id, and every
// edge whose source or target is in that set. It iterates to a fixed point
// since edges can parent further cells.
func Cascade(doc *diagram.Document, id string) map[string]struct{} {
	set := map[string]struct{}{id: {}}
	cells := doc.Cells()
	for changed := true; changed; {
		changed = false
		for _, c := range cells {
			if _, in := set[c.ID]; in {
				continue
			}
			_, hit := set[c.Parent]
			if !hit && c.IsEdge() {
				_, bySource := set[c.Source]
				_, byTarget := set[c.Target]
				hit = bySource || byTarget
			}
			if hit {
				set[c.ID] = struct{}{}
				changed = true
			}
		}
	}
	return set
}

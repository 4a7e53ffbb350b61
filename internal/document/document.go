// Package document wraps a flat cell sequence into a complete diagram
// document and validates its structure.
package document

import (
	"strings"

	"diagram_engine/internal/diagram"
)

const (
	modelOpen  = "<mxGraphModel>\n  <root>\n"
	modelClose = "  </root>\n</mxGraphModel>"
	rootCell   = `<mxCell id="0"/>`
	layerCell  = `<mxCell id="1" parent="0"/>`
)

// Wrap renders cells inside the model/root envelope with the two scaffold
// cells prepended. It does not validate.
func Wrap(cells []diagram.Cell) string {
	var b strings.Builder
	b.WriteString(modelOpen)
	b.WriteString("    " + rootCell + "\n")
	b.WriteString("    " + layerCell + "\n")
	for _, c := range cells {
		b.WriteString("    ")
		b.WriteString(c.XML())
		b.WriteByte('\n')
	}
	b.WriteString(modelClose)
	return b.String()
}

// IsScaffold reports whether c is one of the two cells Wrap injects.
func IsScaffold(c diagram.Cell) bool {
	if c.Kind != "" {
		return false
	}
	switch c.ID {
	case diagram.RootID:
		return c.Parent == ""
	case diagram.LayerID:
		return c.Parent == diagram.RootID
	}
	return false
}

// StripScaffold drops scaffold cells. Any other use of a reserved id is left
// for Validate to report.
func StripScaffold(cells []diagram.Cell) []diagram.Cell {
	out := make([]diagram.Cell, 0, len(cells))
	for _, c := range cells {
		if IsScaffold(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Unwrap parses document or fragment text into its generator cells.
func Unwrap(text string) ([]diagram.Cell, error) {
	cells, err := diagram.Parse(text)
	if err != nil {
		return nil, err
	}
	return StripScaffold(cells), nil
}

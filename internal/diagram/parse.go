package diagram

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"diagram_engine/pkg"
)

// containerElements are document scaffolding the tokenizer descends through.
var containerElements = map[string]bool{
	"mxfile":       true,
	"diagram":      true,
	"mxGraphModel": true,
	"root":         true,
}

// Parse tokenizes text made of sibling cell elements into cells, in document order.
// Cells nested inside another cell are returned after their container with
// Container set; rejecting them is the validator's job.
//
// Parse expects text the completeness detector already accepted. Any tag
// structure it cannot resolve is reported as MalformedFragment.
func Parse(text string) ([]Cell, error) {
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = true

	var cells []Cell
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return cells, nil
			}
			return nil, malformed("", "xml: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == ElementCell:
				parsed, err := parseCell(dec, t, "")
				if err != nil {
					return nil, err
				}
				cells = append(cells, parsed...)
			case containerElements[t.Name.Local]:
				// descend
			default:
				return nil, malformed("", "unexpected element <%s>", t.Name.Local)
			}
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, malformed("", "unexpected text %q outside elements", preview(string(t)))
			}
		}
	}
}

// ParseCell parses text that must hold exactly one cell element.
func ParseCell(text string) (Cell, error) {
	cells, err := Parse(text)
	if err != nil {
		return Cell{}, err
	}
	switch {
	case len(cells) == 0:
		return Cell{}, malformed("", "payload contains no %s element", ElementCell)
	case len(cells) > 1:
		return Cell{}, malformed(cells[0].ID, "payload must contain exactly one %s element, found %d", ElementCell, len(cells))
	}
	return cells[0], nil
}

func parseCell(dec *xml.Decoder, start xml.StartElement, container string) ([]Cell, error) {
	cell, err := cellFromStart(start)
	if err != nil {
		return nil, err
	}
	cell.Container = container

	var nested []Cell
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(cell.ID, "xml: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case ElementGeometry:
				if cell.Geometry != nil {
					return nil, malformed(cell.ID, "more than one %s", ElementGeometry)
				}
				geo, inner, err := parseGeometry(dec, t, cell.ID)
				if err != nil {
					return nil, err
				}
				cell.Geometry = geo
				nested = append(nested, inner...)
			case ElementCell:
				inner, err := parseCell(dec, t, cell.ID)
				if err != nil {
					return nil, err
				}
				nested = append(nested, inner...)
			default:
				return nil, malformed(cell.ID, "unexpected element <%s> inside %s", t.Name.Local, ElementCell)
			}
		case xml.EndElement:
			return append([]Cell{cell}, nested...), nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, malformed(cell.ID, "unexpected text %q inside %s", preview(string(t)), ElementCell)
			}
		}
	}
}

func parseGeometry(dec *xml.Decoder, start xml.StartElement, cellID string) (*Geometry, []Cell, error) {
	geo := &Geometry{Attrs: attrsOf(start)}
	var (
		nested []Cell
		buf    bytes.Buffer
	)
	enc := xml.NewEncoder(&buf)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, malformed(cellID, "xml: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == ElementCell {
				inner, err := parseCell(dec, t, cellID)
				if err != nil {
					return nil, nil, err
				}
				nested = append(nested, inner...)
				continue
			}
			if err := copySubtree(dec, enc, t); err != nil {
				return nil, nil, malformed(cellID, "geometry: %v", err)
			}
		case xml.EndElement:
			if err := enc.Flush(); err != nil {
				return nil, nil, malformed(cellID, "geometry: %v", err)
			}
			geo.Inner = buf.String()
			return geo, nested, nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, nil, malformed(cellID, "unexpected text %q inside %s", preview(string(t)), ElementGeometry)
			}
		}
	}
}

// copySubtree re-encodes one element and its descendants.
func copySubtree(dec *xml.Decoder, enc *xml.Encoder, start xml.StartElement) error {
	if err := enc.EncodeToken(start.Copy()); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if len(bytes.TrimSpace(tok.(xml.CharData))) == 0 {
				continue
			}
		case xml.Comment, xml.ProcInst, xml.Directive:
			continue
		}
		if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
			return err
		}
	}
	return nil
}

func cellFromStart(start xml.StartElement) (Cell, error) {
	cell := Cell{Attrs: attrsOf(start)}
	var vertex, edge bool
	for _, a := range cell.Attrs {
		switch a.Name {
		case AttrID:
			cell.ID = a.Value
		case AttrParent:
			cell.Parent = a.Value
		case AttrSource:
			cell.Source = a.Value
		case AttrTarget:
			cell.Target = a.Value
		case AttrVertex:
			vertex = a.Value == "1"
		case AttrEdge:
			edge = a.Value == "1"
		}
	}
	if strings.TrimSpace(cell.ID) == "" {
		return Cell{}, &pkg.Error{
			Code:    pkg.CodeMalformedFragment,
			Message: fmt.Sprintf("%s without id", ElementCell),
			Diagnostics: []pkg.Diagnostic{{
				Code:    pkg.CodeMalformedFragment,
				Field:   AttrID,
				Message: fmt.Sprintf("%s without id: %s", ElementCell, echoAttrs(cell.Attrs)),
			}},
		}
	}
	switch {
	case vertex && edge:
		return Cell{}, malformed(cell.ID, "cell is marked both vertex and edge")
	case edge:
		cell.Kind = KindEdge
	case vertex:
		cell.Kind = KindVertex
	default:
		// Scaffold cells carry neither marker.
		if !IsReservedID(cell.ID) {
			return Cell{}, malformed(cell.ID, "cell must carry vertex=\"1\" or edge=\"1\"")
		}
	}
	return cell, nil
}

func attrsOf(start xml.StartElement) []Attr {
	attrs := make([]Attr, 0, len(start.Attr))
	for _, a := range start.Attr {
		name := a.Name.Local
		if a.Name.Space != "" {
			name = a.Name.Space + ":" + name
		}
		attrs = append(attrs, Attr{Name: name, Value: a.Value})
	}
	return attrs
}

// echoAttrs renders attributes in source order for diagnostics.
func echoAttrs(attrs []Attr) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, fmt.Sprintf("%s=%q", a.Name, a.Value))
	}
	return "<" + ElementCell + " " + strings.Join(parts, " ") + ">"
}

func malformed(cellID, format string, args ...any) *pkg.Error {
	msg := fmt.Sprintf(format, args...)
	return &pkg.Error{
		Code:        pkg.CodeMalformedFragment,
		Message:     msg,
		Diagnostics: []pkg.Diagnostic{{Code: pkg.CodeMalformedFragment, CellID: cellID, Message: msg}},
	}
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

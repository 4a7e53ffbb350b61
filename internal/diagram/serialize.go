package diagram

import (
	"encoding/xml"
	"strings"
)

// XML renders the cell as a single element. Attribute order is preserved.
func (c Cell) XML() string {
	var b strings.Builder
	writeCell(&b, c)
	return b.String()
}

// Serialize renders cells as flat siblings, one per line.
func Serialize(cells []Cell) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeCell(&b, c)
	}
	return b.String()
}

func writeCell(b *strings.Builder, c Cell) {
	b.WriteString("<" + ElementCell)
	writeAttrs(b, c.Attrs)
	if c.Geometry == nil {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")
	b.WriteString("<" + ElementGeometry)
	writeAttrs(b, c.Geometry.Attrs)
	if c.Geometry.Inner == "" {
		b.WriteString("/>")
	} else {
		b.WriteString(">")
		b.WriteString(c.Geometry.Inner)
		b.WriteString("</" + ElementGeometry + ">")
	}
	b.WriteString("</" + ElementCell + ">")
}

func writeAttrs(b *strings.Builder, attrs []Attr) {
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(EscapeAttr(a.Value))
		b.WriteByte('"')
	}
}

// EscapeAttr escapes a value for use inside a double-quoted attribute.
func EscapeAttr(s string) string {
	var b strings.Builder
	// strings.Builder never fails a write
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

package diagram

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagram_engine/pkg"
)

const twoBoxes = `<mxCell id="a" value="Start" style="rounded=1;" vertex="1" parent="1"><mxGeometry x="10" y="20" width="80" height="40" as="geometry"/></mxCell>
<mxCell id="b" value="End" vertex="1" parent="1"><mxGeometry x="200" y="20" width="80" height="40" as="geometry"/></mxCell>
<mxCell id="e1" edge="1" parent="1" source="a" target="b"><mxGeometry relative="1" as="geometry"><Array as="points"><mxPoint x="150" y="40"/></Array></mxGeometry></mxCell>`

func TestParse_FlatSiblings(t *testing.T) {
	cells, err := Parse(twoBoxes)
	require.NoError(t, err)
	require.Len(t, cells, 3)

	assert.Equal(t, "a", cells[0].ID)
	assert.Equal(t, KindVertex, cells[0].Kind)
	assert.Equal(t, "1", cells[0].Parent)
	assert.Equal(t, "rounded=1;", cells[0].Style())
	assert.Equal(t, 80.0, cells[0].Geometry.Width())

	edge := cells[2]
	assert.Equal(t, KindEdge, edge.Kind)
	assert.Equal(t, "a", edge.Source)
	assert.Equal(t, "b", edge.Target)
	assert.True(t, edge.Geometry.Relative())
	assert.Contains(t, edge.Geometry.Inner, `<mxPoint x="150" y="40">`)

	for _, c := range cells {
		assert.Empty(t, c.Container)
	}
}

func TestParse_AttributeOrderPreserved(t *testing.T) {
	cells, err := Parse(`<mxCell vertex="1" parent="1" id="x" value="v"/>`)
	require.NoError(t, err)
	require.Len(t, cells, 1)

	want := []Attr{{"vertex", "1"}, {"parent", "1"}, {"id", "x"}, {"value", "v"}}
	if diff := cmp.Diff(want, cells[0].Attrs); diff != "" {
		t.Errorf("attrs mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_DescendsThroughScaffold(t *testing.T) {
	text := `<mxfile><diagram name="p1"><mxGraphModel dx="800"><root>
<mxCell id="0"/><mxCell id="1" parent="0"/>
<mxCell id="a" vertex="1" parent="1"/>
</root></mxGraphModel></diagram></mxfile>`

	cells, err := Parse(text)
	require.NoError(t, err)
	ids := make([]string, 0, len(cells))
	for _, c := range cells {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"0", "1", "a"}, ids)
}

func TestParse_NestedCellRecordsContainer(t *testing.T) {
	cells, err := Parse(`<mxCell id="outer" vertex="1" parent="1"><mxCell id="inner" vertex="1" parent="outer"/></mxCell>`)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "outer", cells[0].ID)
	assert.Empty(t, cells[0].Container)
	assert.Equal(t, "inner", cells[1].ID)
	assert.Equal(t, "outer", cells[1].Container)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing id", `<mxCell vertex="1" parent="1"/>`},
		{"no kind marker", `<mxCell id="a" parent="1"/>`},
		{"both kinds", `<mxCell id="a" vertex="1" edge="1" parent="1"/>`},
		{"unknown element", `<foo id="a"/>`},
		{"two geometries", `<mxCell id="a" vertex="1" parent="1"><mxGeometry as="geometry"/><mxGeometry as="geometry"/></mxCell>`},
		{"stray text", `hello <mxCell id="a" vertex="1" parent="1"/>`},
		{"unbalanced", `<mxCell id="a" vertex="1" parent="1">`},
		{"unescaped lt in value", `<mxCell id="a" value="a<b" vertex="1" parent="1"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.Equal(t, pkg.CodeMalformedFragment, pkg.CodeOf(err))
			assert.NotEmpty(t, pkg.DiagnosticsOf(err))
		})
	}
}

func TestParse_MissingIDEchoesAttributes(t *testing.T) {
	_, err := Parse(`<mxCell value="orphan" vertex="1"/>`)
	require.Error(t, err)
	diags := pkg.DiagnosticsOf(err)
	require.Len(t, diags, 1)
	assert.Equal(t, AttrID, diags[0].Field)
	assert.Contains(t, diags[0].Message, `value="orphan"`)
}

func TestParseCell(t *testing.T) {
	c, err := ParseCell(`<mxCell id="a" vertex="1" parent="1"/>`)
	require.NoError(t, err)
	assert.Equal(t, "a", c.ID)

	_, err = ParseCell(``)
	assert.Equal(t, pkg.CodeMalformedFragment, pkg.CodeOf(err))

	_, err = ParseCell(`<mxCell id="a" vertex="1" parent="1"/><mxCell id="b" vertex="1" parent="1"/>`)
	assert.Equal(t, pkg.CodeMalformedFragment, pkg.CodeOf(err))
}

func TestSerialize_RoundTrip(t *testing.T) {
	tricky := `<mxCell id="q" value="a &amp; b &lt;c&gt; &quot;d&quot;&#xA;line" style="html=1;" vertex="1" parent="1"/>`
	for _, text := range []string{twoBoxes, tricky} {
		cells, err := Parse(text)
		require.NoError(t, err)

		again, err := Parse(Serialize(cells))
		require.NoError(t, err)
		if diff := cmp.Diff(cells, again); diff != "" {
			t.Errorf("round trip mismatch (-first +second):\n%s", diff)
		}
	}
}

func TestCell_SetAttrSyncsTypedFields(t *testing.T) {
	c, err := ParseCell(`<mxCell id="e" edge="1" parent="1" source="a"/>`)
	require.NoError(t, err)

	c.SetAttr(AttrSource, "b")
	c.SetAttr(AttrTarget, "c")
	assert.Equal(t, "b", c.Source)
	assert.Equal(t, "c", c.Target)

	v, ok := c.Attr(AttrTarget)
	assert.True(t, ok)
	assert.Equal(t, "c", v)
	assert.Equal(t, []Attr{{AttrParent, "1"}, {AttrSource, "b"}, {AttrTarget, "c"}}, c.References())
}

func TestCell_CloneIsIndependent(t *testing.T) {
	c, err := ParseCell(`<mxCell id="a" vertex="1" parent="1"><mxGeometry x="1" as="geometry"/></mxCell>`)
	require.NoError(t, err)

	cp := c.Clone()
	cp.SetAttr(AttrValue, "changed")
	cp.Geometry.Attrs[0].Value = "99"

	_, ok := c.Attr(AttrValue)
	assert.False(t, ok)
	assert.Equal(t, 1.0, c.Geometry.X())
}

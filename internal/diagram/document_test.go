package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagram_engine/pkg"
)

func mustDocument(t *testing.T, text string) *Document {
	t.Helper()
	cells, err := Parse(text)
	require.NoError(t, err)
	doc, err := NewDocument(cells)
	require.NoError(t, err)
	return doc
}

func TestNewDocument_ReportsEveryDuplicate(t *testing.T) {
	cells, err := Parse(`<mxCell id="a" vertex="1" parent="1"/><mxCell id="a" vertex="1" parent="1"/><mxCell id="a" vertex="1" parent="1"/>`)
	require.NoError(t, err)

	_, err = NewDocument(cells)
	require.Error(t, err)
	diags := pkg.DiagnosticsOf(err)
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, pkg.CodeDuplicateID, d.Code)
		assert.Equal(t, "a", d.CellID)
	}
}

func TestDocument_MutationsKeepOrder(t *testing.T) {
	doc := mustDocument(t, twoBoxes)
	assert.Equal(t, 3, doc.Len())

	extra, err := ParseCell(`<mxCell id="c" vertex="1" parent="a"/>`)
	require.NoError(t, err)
	assert.True(t, doc.Insert(extra))
	assert.False(t, doc.Insert(extra))

	updated, err := ParseCell(`<mxCell id="a" value="Renamed" vertex="1" parent="1"/>`)
	require.NoError(t, err)
	assert.True(t, doc.Replace(updated))

	doc.Remove(map[string]struct{}{"b": {}})

	var ids []string
	for _, c := range doc.Cells() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"a", "e1", "c"}, ids)
	got, _ := doc.Get("a")
	assert.Equal(t, "Renamed", got.Value())
	assert.Equal(t, []string{"c"}, doc.Children("a"))
}

func TestDocument_CloneDoesNotShareState(t *testing.T) {
	doc := mustDocument(t, twoBoxes)
	cp := doc.Clone()
	cp.Remove(map[string]struct{}{"a": {}})

	assert.True(t, doc.Has("a"))
	assert.False(t, cp.Has("a"))
	assert.Equal(t, 3, doc.Len())
}

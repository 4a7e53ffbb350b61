package detector

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Completeness
	}{
		{"self-closed cell", `<mxCell id="a" vertex="1" parent="1"/>`, Complete},
		{"dangling tag", `<mxCell id="a" vertex="1" parent="1`, Incomplete},
		{"gt inside quotes", `<mxCell id="a" value="1>2" vertex="1" parent="1"/>`, Complete},
		{"lt inside single quotes", `<mxCell id='a' value='x<y' vertex='1' parent='1'/>`, Complete},
		{"cut mid attribute", `<mxCell id="a" value="hel`, Incomplete},
		{"open element", `<mxCell id="a" vertex="1" parent="1"><mxGeometry as="geometry"/>`, Incomplete},
		{"closed element", `<mxCell id="a" vertex="1" parent="1"><mxGeometry as="geometry"/></mxCell>`, Complete},
		{"whole document", `<mxGraphModel><root><mxCell id="0"/><mxCell id="1" parent="0"/></root></mxGraphModel>`, Complete},
		{"extra close", `<mxCell id="a" vertex="1" parent="1"/></mxCell>`, Incomplete},
		{"stray close then open", `</mxCell><mxCell id="a" vertex="1" parent="1">`, Incomplete},
		{"stray close hidden by later depth", `</mxCell><mxCell id="b" vertex="1" parent="1"><mxGeometry as="geometry"></mxGeometry>`, Incomplete},
		{"empty", ``, Complete},
		{"comment with markup", `<!-- <mxCell id="x"> --><mxCell id="a" vertex="1" parent="1"/>`, Complete},
		{"cut comment", `<mxCell id="a" vertex="1" parent="1"/><!-- trailing`, Incomplete},
		{"xml declaration", `<?xml version="1.0"?><mxCell id="a" vertex="1" parent="1"/>`, Complete},
		{"cut at lt", `<mxCell id="a" vertex="1" parent="1"/><`, Incomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.text))
			// idempotent
			assert.Equal(t, tt.want, Detect(tt.text))
		})
	}
}

func TestDetect_EveryPrefixOfACompleteFragmentIsIncomplete(t *testing.T) {
	full := `<mxCell id="a" value="x&gt;y" vertex="1" parent="1"><mxGeometry x="1" as="geometry"/></mxCell>`
	assert.True(t, IsComplete(full))
	for i := 1; i < len(full); i++ {
		assert.False(t, IsComplete(full[:i]), "prefix %q", full[:i])
	}
}

func TestResumePoint(t *testing.T) {
	assert.Equal(t, "short", ResumePoint("short", 10))
	assert.Equal(t, "6789", ResumePoint("0123456789", 4))

	buf := strings.Repeat("a", 10) + "日本語"
	got := ResumePoint(buf, 5)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(buf, got))
	assert.Equal(t, "語", got)

	long := strings.Repeat("x", DefaultResumeTail+50)
	assert.Len(t, ResumePoint(long, 0), DefaultResumeTail)
}

func TestNormalize(t *testing.T) {
	cell := `<mxCell id="a" vertex="1" parent="1"/>`
	tests := []struct {
		name string
		in   string
	}{
		{"plain", cell},
		{"padded", "\n  " + cell + "\n"},
		{"fenced", "```xml\n" + cell + "\n```"},
		{"bare fence", "```\n" + cell + "\n```"},
		{"declaration", `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + cell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, cell, Normalize(tt.in))
		})
	}
}

func TestNormalize_TruncatedKeepsTail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"space inside value", `<mxCell id="a" value="hello `, `<mxCell id="a" value="hello `},
		{"newline between cells", "  <mxCell id=\"a\" vertex=\"1\" parent=\"1\"/>\n<mxCell id=\"b\"\n", "<mxCell id=\"a\" vertex=\"1\" parent=\"1\"/>\n<mxCell id=\"b\"\n"},
		{"fenced and cut", "```xml\n<mxCell id=\"a\" value=\"x`` ", "<mxCell id=\"a\" value=\"x`` "},
		{"declaration and cut", `<?xml version="1.0"?> <mxCell id="a" value="tail `, `<mxCell id="a" value="tail `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.False(t, IsComplete(got))
		})
	}
}

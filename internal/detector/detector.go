// Package detector decides whether a streamed markup fragment is structurally
// complete, without parsing it.
package detector

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Completeness is the verdict of Detect
type Completeness int

const (
	Incomplete Completeness = iota
	Complete
)

func (c Completeness) String() string {
	if c == Complete {
		return "complete"
	}
	return "incomplete"
}

// DefaultResumeTail is how many trailing bytes are echoed back to the
// generator when asking for a continuation.
const DefaultResumeTail = 300

// Detect scans text once and reports Complete only when no tag is left open,
// no attribute quote is left open, and every opened element has been closed.
// Comments, processing instructions and CDATA sections are skipped as units;
// one that is cut off makes the text Incomplete. Detect never fails.
//
// It is safe to iterate bytes because every delimiter it looks at is ASCII,
// and UTF-8 never reuses ASCII bytes inside multi-byte sequences.
func Detect(text string) Completeness {
	var (
		depth    int
		stray    bool // a close tag with nothing open
		inTag    bool
		quote    byte
		tagStart int
	)
	for i := 0; i < len(text); i++ {
		b := text[i]
		if !inTag {
			if b != '<' {
				continue
			}
			if skip, ok := skipSpecial(text[i:]); skip > 0 {
				if !ok {
					return Incomplete
				}
				i += skip - 1
				continue
			}
			inTag = true
			tagStart = i
			continue
		}

		if quote != 0 {
			if b == quote {
				quote = 0
			}
			continue
		}

		switch b {
		case '"', '\'':
			quote = b
		case '>':
			inTag = false
			switch {
			case text[tagStart+1] == '/':
				depth--
				if depth < 0 {
					stray = true
				}
			case text[tagStart+1] == '!':
				// <!DOCTYPE ...> and friends carry no depth
			case text[i-1] == '/':
				// self-closing
			default:
				depth++
			}
		}
	}

	if inTag || quote != 0 || depth != 0 || stray {
		return Incomplete
	}
	return Complete
}

// IsComplete is shorthand for Detect(text) == Complete.
func IsComplete(text string) bool {
	return Detect(text) == Complete
}

// skipSpecial measures a comment, CDATA section or processing instruction
// starting at s. skip is 0 when s does not start one; ok is false when it is
// not terminated.
func skipSpecial(s string) (skip int, ok bool) {
	for _, m := range [...]struct{ open, close string }{
		{"<!--", "-->"},
		{"<![CDATA[", "]]>"},
		{"<?", "?>"},
	} {
		if !strings.HasPrefix(s, m.open) {
			continue
		}
		end := strings.Index(s[len(m.open):], m.close)
		if end < 0 {
			return len(s), false
		}
		return len(m.open) + end + len(m.close), true
	}
	return 0, false
}

// ResumePoint returns the last n bytes of buffer, moved forward to the nearest
// rune boundary so the echo never starts mid-character.
func ResumePoint(buffer string, n int) string {
	if n <= 0 {
		n = DefaultResumeTail
	}
	if len(buffer) <= n {
		return buffer
	}
	start := len(buffer) - n
	for start < len(buffer) && !utf8.RuneStart(buffer[start]) {
		start++
	}
	return buffer[start:]
}

var (
	fenceOpen  = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\r?\n?")
	fenceClose = regexp.MustCompile("`{1,3}$")
	xmlDecl    = regexp.MustCompile(`^<\?xml[^>]*\?>`)
)

// Normalize strips the wrapping generators tend to add around a first
// fragment: leading whitespace, an opening markdown code fence and an XML
// declaration. The tail is only touched once the fragment is complete; a
// truncated fragment keeps every trailing byte since the continuation is
// appended to it verbatim. Continuations are never normalized.
func Normalize(fragment string) string {
	s := strings.TrimLeftFunc(fragment, unicode.IsSpace)
	fenced := strings.HasPrefix(s, "```")
	if fenced {
		s = strings.TrimLeftFunc(fenceOpen.ReplaceAllString(s, ""), unicode.IsSpace)
	}
	if loc := xmlDecl.FindStringIndex(s); loc != nil {
		s = strings.TrimLeftFunc(s[loc[1]:], unicode.IsSpace)
	}

	if !IsComplete(s) {
		return s
	}
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if fenced {
		s = strings.TrimRightFunc(fenceClose.ReplaceAllString(s, ""), unicode.IsSpace)
	}
	return s
}

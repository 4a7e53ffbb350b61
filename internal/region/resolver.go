package region

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"diagram_engine/internal/diagram"
	"diagram_engine/pkg"
	"diagram_engine/src/logger"
)

// Reference is one (cache key, region name) pointer found in a style
type Reference struct {
	CacheKey string
	Region   string
}

func (r Reference) String() string { return r.CacheKey + "/" + r.Region }

const referencePrefix = "image=data:cache/"

var (
	referenceRe = regexp.MustCompile(`image=data:cache/([^/;\s"'&<>]+)/([^;\s"'&<>]+)`)
	styleAttrRe = regexp.MustCompile(`(\sstyle\s*=\s*)(?:"([^"]*)"|'([^']*)')`)
)

var payloadEscaper = strings.NewReplacer("%", "%25", ";", "%3B")

// EscapePayload percent-encodes the style separator so a payload cannot split
// the surrounding key=value list. % is encoded too, so an escaped separator
// stays distinguishable from a literal "%3B" in the payload.
func EscapePayload(payload string) string {
	return payloadEscaper.Replace(payload)
}

// FindReferences lists the references in a style value, in order.
func FindReferences(style string) []Reference {
	var refs []Reference
	for _, m := range referenceRe.FindAllStringSubmatch(style, -1) {
		refs = append(refs, Reference{CacheKey: m[1], Region: m[2]})
	}
	return refs
}

// Resolver substitutes cache references with the payloads held in a Store
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// TextResolution is the result of ResolveText
type TextResolution struct {
	Text       string
	Resolved   int
	Unresolved []pkg.Diagnostic
}

// CellResolution is the result of ResolveCells
type CellResolution struct {
	Cells      []diagram.Cell
	Resolved   int
	Unresolved []pkg.Diagnostic
}

// lookup memoizes store reads for one resolution pass.
type lookup struct {
	ctx   context.Context
	store Store
	seen  map[string]map[string]string
}

func (l *lookup) payload(ref Reference) (string, error) {
	regions, cached := l.seen[ref.CacheKey]
	if !cached {
		got, ok, err := l.store.Get(l.ctx, ref.CacheKey)
		if err != nil {
			return "", fmt.Errorf("payload store: %w", err)
		}
		if !ok {
			got = nil
		}
		l.seen[ref.CacheKey] = got
		regions = got
	}
	if regions == nil {
		return "", fmt.Errorf("cache key %q not found or expired", ref.CacheKey)
	}
	p, ok := regions[ref.Region]
	if !ok {
		return "", fmt.Errorf("region %q not found under cache key %q", ref.Region, ref.CacheKey)
	}
	return p, nil
}

func (r *Resolver) newLookup(ctx context.Context) *lookup {
	return &lookup{ctx: ctx, store: r.store, seen: make(map[string]map[string]string)}
}

// resolveStyle substitutes every resolvable reference in one style value.
// Unresolved references stay verbatim.
func resolveStyle(l *lookup, cellID, style string) (string, int, []pkg.Diagnostic) {
	if !strings.Contains(style, referencePrefix) {
		return style, 0, nil
	}
	var (
		resolved   int
		unresolved []pkg.Diagnostic
	)
	out := referenceRe.ReplaceAllStringFunc(style, func(match string) string {
		m := referenceRe.FindStringSubmatch(match)
		ref := Reference{CacheKey: m[1], Region: m[2]}
		payload, err := l.payload(ref)
		if err != nil {
			logger.Warn().Str("cell_id", cellID).Str("ref", ref.String()).Err(err).Msg("unresolved region reference")
			unresolved = append(unresolved, pkg.Diagnostic{
				Code:    pkg.CodeUnresolvedReference,
				CellID:  cellID,
				Field:   diagram.AttrStyle,
				Ref:     ref.String(),
				Message: err.Error(),
			})
			return match
		}
		resolved++
		return "image=" + EscapePayload(payload)
	})
	return out, resolved, unresolved
}

// ResolveText resolves references inside every style attribute of document
// text. Text outside changed attributes is kept byte for byte.
func (r *Resolver) ResolveText(ctx context.Context, text string) TextResolution {
	l := r.newLookup(ctx)
	res := TextResolution{}
	res.Text = styleAttrRe.ReplaceAllStringFunc(text, func(attr string) string {
		m := styleAttrRe.FindStringSubmatch(attr)
		raw, quote := m[2], `"`
		if strings.HasPrefix(attr[len(m[1]):], "'") {
			raw, quote = m[3], "'"
		}
		style := html.UnescapeString(raw)
		out, n, unresolved := resolveStyle(l, "", style)
		res.Unresolved = append(res.Unresolved, unresolved...)
		if n == 0 {
			return attr
		}
		res.Resolved += n
		return m[1] + quote + diagram.EscapeAttr(out) + quote
	})
	return res
}

// ResolveCells resolves references in the style of every cell. The input is not modified.
func (r *Resolver) ResolveCells(ctx context.Context, cells []diagram.Cell) CellResolution {
	l := r.newLookup(ctx)
	res := CellResolution{Cells: make([]diagram.Cell, 0, len(cells))}
	for _, c := range cells {
		style, ok := c.Attr(diagram.AttrStyle)
		if !ok {
			res.Cells = append(res.Cells, c)
			continue
		}
		out, n, unresolved := resolveStyle(l, c.ID, style)
		res.Unresolved = append(res.Unresolved, unresolved...)
		if n > 0 {
			c = c.Clone()
			c.SetAttr(diagram.AttrStyle, out)
			res.Resolved += n
		}
		res.Cells = append(res.Cells, c)
	}
	return res
}

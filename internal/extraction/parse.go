package extraction

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"thirdcoast.systems/haul/internal/linkid"
	"thirdcoast.systems/haul/pkg/utils/markdown"
)

const (
	maxNameRunes        = 200
	maxDescriptionRunes = 2000
	maxIconRunes        = 64
)

// record is one element of the model's JSON array.
type record struct {
	Name                string `json:"name" validate:"required"`
	Category            string `json:"category" validate:"required"`
	Description         string `json:"description"`
	Icon                string `json:"icon"`
	MentionedContext    string `json:"mentioned_context"`
	CategoryDescription string `json:"category_description"`
}

var validate = validator.New()

// ParseProducts decodes model output into groups keyed by category. Output
// that holds no JSON array decodes to nil; elements missing a name or
// category are dropped. Category names that match a known category (ignoring
// case and spacing) take the known spelling.
func ParseProducts(raw string, known []KnownCategory) []Group {
	elems, ok := findArray([]byte(raw))
	if !ok {
		slog.Debug("extraction output holds no json array", "bytes", len(raw))
		return nil
	}

	canonical := make(map[string]KnownCategory, len(known))
	for _, k := range known {
		canonical[linkid.FoldName(k.Name)] = k
	}

	var groups []Group
	index := map[string]int{}
	seen := map[string]bool{}
	for _, el := range elems {
		var r record
		if err := json.Unmarshal(el, &r); err != nil {
			continue
		}
		r.Name = markdown.Truncate(markdown.PlainText(r.Name), maxNameRunes)
		r.Category = markdown.Truncate(markdown.PlainText(r.Category), maxNameRunes)
		if err := validate.Struct(r); err != nil {
			continue
		}

		catKey := linkid.FoldName(r.Category)
		i, ok := index[catKey]
		if !ok {
			g := Group{Category: r.Category, Description: markdown.PlainText(r.CategoryDescription)}
			if k, isKnown := canonical[catKey]; isKnown {
				g.Category = k.Name
				g.Description = k.Description
				g.Known = true
			}
			groups = append(groups, g)
			i = len(groups) - 1
			index[catKey] = i
		}

		prodKey := catKey + "\x00" + linkid.FoldName(r.Name)
		if seen[prodKey] {
			continue
		}
		seen[prodKey] = true

		p := Product{
			Name:             r.Name,
			Description:      markdown.Truncate(markdown.PlainText(r.Description), maxDescriptionRunes),
			MentionedContext: markdown.Truncate(markdown.PlainText(r.MentionedContext), maxDescriptionRunes),
		}
		if icon := markdown.Truncate(markdown.PlainText(r.Icon), maxIconRunes); icon != "" {
			p.Icon = &icon
		}
		groups[i].Products = append(groups[i].Products, p)
	}
	return groups
}

// findArray scans every '[' in b and decodes the JSON array starting there,
// which skips code fences and prose (bracketed or not) around the payload.
// The first array holding an object wins; failing that, the first array that
// decodes at all.
func findArray(b []byte) ([]json.RawMessage, bool) {
	var fallback []json.RawMessage
	found := false
	for off := 0; off < len(b); {
		i := bytes.IndexByte(b[off:], '[')
		if i == -1 {
			break
		}
		start := off + i
		off = start + 1

		var elems []json.RawMessage
		if err := json.NewDecoder(bytes.NewReader(b[start:])).Decode(&elems); err != nil {
			continue
		}
		for _, el := range elems {
			if len(el) > 0 && el[0] == '{' {
				return elems, true
			}
		}
		if !found {
			fallback, found = elems, true
		}
	}
	return fallback, found
}

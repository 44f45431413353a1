package catalog

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Field aliases, in lookup order. The first alias carrying a usable value wins.
var (
	aliasHandle                  = []string{"Handle", "handle"}
	aliasTitle                   = []string{"Title", "title", "Name", "name"}
	aliasBodyHTML                = []string{"Body (HTML)"}
	aliasVendor                  = []string{"Vendor"}
	aliasProductCategory         = []string{"Product Category"}
	aliasType                    = []string{"Type"}
	aliasTags                    = []string{"Tags"}
	aliasPublished               = []string{"Published"}
	aliasFeatured                = []string{"Featured"}
	aliasStatus                  = []string{"Status"}
	aliasVariantSKU              = []string{"Variant SKU"}
	aliasVariantPrice            = []string{"Variant Price"}
	aliasVariantCompareAtPrice   = []string{"Variant Compare At Price"}
	aliasCurrency                = []string{"Currency"}
	aliasVariantRequiresShipping = []string{"Variant Requires Shipping"}
	aliasVariantTaxable          = []string{"Variant Taxable"}
	aliasPrimaryImage            = []string{"Image Src", "Primary Image", "primary_image"}
	aliasSecondaryImage          = []string{"Variant Image", "Secondary Image", "secondary_image"}
	aliasImageAltText            = []string{"Image Alt Text"}
	aliasCategoryDisplay         = []string{"Category Display"}
	aliasSEOTitle                = []string{"SEO Title"}
	aliasSEODescription          = []string{"SEO Description"}
)

var (
	truthyWords = map[string]bool{"yes": true, "true": true, "1": true, "published": true, "active": true}
	falsyWords  = map[string]bool{"no": true, "false": true, "0": true, "draft": true, "inactive": true, "unpublished": true}
)

// Normalize maps a source record onto a mirror row. It never touches the
// network or the database. Only a missing handle or title rejects the record;
// malformed optional fields fall back to their defaults.
func Normalize(rec Record) (*Product, error) {
	f := rec.Fields
	if rec.ID == "" {
		return nil, ErrMissingSourceID
	}

	p := &Product{
		AirtableRecordID:        rec.ID,
		Handle:                  lookupString(f, aliasHandle...),
		Title:                   lookupString(f, aliasTitle...),
		BodyHTML:                lookupString(f, aliasBodyHTML...),
		Vendor:                  orDefault(lookupString(f, aliasVendor...), DefaultVendor),
		ProductCategory:         lookupString(f, aliasProductCategory...),
		Type:                    lookupString(f, aliasType...),
		Tags:                    NormalizeTags(lookup(f, aliasTags...)),
		Published:               NormalizeBool(lookup(f, aliasPublished...), false),
		Featured:                NormalizeBool(lookup(f, aliasFeatured...), false),
		VariantSKU:              lookupString(f, aliasVariantSKU...),
		VariantPrice:            NormalizePrice(lookup(f, aliasVariantPrice...)),
		VariantCompareAtPrice:   NormalizePrice(lookup(f, aliasVariantCompareAtPrice...)),
		Currency:                orDefault(strings.ToUpper(lookupString(f, aliasCurrency...)), DefaultCurrency),
		VariantRequiresShipping: NormalizeBool(lookup(f, aliasVariantRequiresShipping...), true),
		VariantTaxable:          NormalizeBool(lookup(f, aliasVariantTaxable...), true),
		PrimaryImage:            lookupImage(f, aliasPrimaryImage...),
		SecondaryImage:          lookupImage(f, aliasSecondaryImage...),
		ImageAltText:            lookupString(f, aliasImageAltText...),
		CategoryDisplay:         lookupString(f, aliasCategoryDisplay...),
		SEOTitle:                lookupString(f, aliasSEOTitle...),
		SEODescription:          lookupString(f, aliasSEODescription...),
	}

	// without a Status column the Published flag decides
	if status := lookup(f, aliasStatus...); status != nil {
		p.Status = NormalizeStatus(status)
	} else {
		p.Status = NormalizeStatus(p.Published)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Field normalizers
// ---------------------------------------------------------------------------

// NormalizeBool maps yes/no strings, booleans and 1/0 numbers onto a strict
// boolean. Absent or unrecognized values yield def.
func NormalizeBool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		switch t {
		case 1:
			return true
		case 0:
			return false
		}
	case int:
		switch t {
		case 1:
			return true
		case 0:
			return false
		}
	case json.Number:
		return NormalizeBool(string(t), def)
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if truthyWords[s] {
			return true
		}
		if falsyWords[s] {
			return false
		}
	}
	return def
}

// NormalizeStatus maps free text onto {active, draft, archived} by substring
// matching. Booleans map true to active. Anything else is draft.
func NormalizeStatus(v any) Status {
	switch t := v.(type) {
	case bool:
		if t {
			return StatusActive
		}
		return StatusDraft
	case float64:
		if t == 1 {
			return StatusActive
		}
		return StatusDraft
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch {
		case s == "":
			return StatusDraft
		case strings.Contains(s, "active") && !strings.Contains(s, "inactive"):
			return StatusActive
		case s == "published":
			return StatusActive
		case strings.Contains(s, "archived"):
			return StatusArchived
		}
	}
	return StatusDraft
}

// NormalizeTags accepts a multi-value list or a comma separated string and
// returns trimmed, deduplicated tags in first-seen order, or nil when empty.
func NormalizeTags(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	var tags []string
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		tags = append(tags, s)
	}
	return tags
}

// NormalizeImage resolves an attachment array, a single attachment object or
// a bare URL string to one URL. Anything else yields "".
func NormalizeImage(v any) string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "http") {
			return s
		}
	case []any:
		if len(t) > 0 {
			return NormalizeImage(t[0])
		}
	case map[string]any:
		if u, ok := t["url"].(string); ok && u != "" {
			return u
		}
		if thumbs, ok := t["thumbnails"].(map[string]any); ok {
			if large, ok := thumbs["large"].(map[string]any); ok {
				if u, ok := large["url"].(string); ok {
					return u
				}
			}
		}
	}
	return ""
}

// PriceScale is the number of decimals the mirror's price columns store.
// Prices are rounded to it so a rerun compares equal to what was written.
const PriceScale = 4

// NormalizePrice parses numbers and numeric strings such as "249", "249.00",
// "249,50 kr" and "1,249.50". A single comma with no dot is the decimal
// separator, any other comma groups thousands. Unparseable values yield an
// invalid NullDecimal.
func NormalizePrice(v any) decimal.NullDecimal {
	var d decimal.Decimal
	switch t := v.(type) {
	case float64:
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	case json.Number:
		return NormalizePrice(string(t))
	case string:
		parsed, ok := parsePrice(t)
		if !ok {
			return decimal.NullDecimal{}
		}
		d = parsed
	default:
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Round(PriceScale))
}

func parsePrice(raw string) (decimal.Decimal, bool) {
	s := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == ',' {
			return r
		}
		return -1
	}, raw)
	if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ---------------------------------------------------------------------------
// lookup helpers
// ---------------------------------------------------------------------------

// lookup returns the first alias whose value is present and not empty.
func lookup(fields map[string]any, aliases ...string) any {
	for _, a := range aliases {
		v, ok := fields[a]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func lookupString(fields map[string]any, aliases ...string) string {
	return stringValue(lookup(fields, aliases...))
}

func lookupImage(fields map[string]any, aliases ...string) string {
	for _, a := range aliases {
		if u := NormalizeImage(fields[a]); u != "" {
			return u
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []any:
		// lookup and rollup fields arrive as single element arrays
		if len(t) > 0 {
			return stringValue(t[0])
		}
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

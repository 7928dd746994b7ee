package schema

import (
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/edtacey/jsonmapper/internal/document"
)

// Pattern hints attached to inferred string schemas.
const (
	PatternCountryCode = `^[A-Z]{2,3}$`
	PatternIDCode      = `^[A-Z0-9]{6,10}$`
	PatternPhone       = `^\+?[1-9]\d{7,14}$`
)

var (
	emailRe       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	uuidRe        = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	countryCodeRe = regexp.MustCompile(PatternCountryCode)
	idCodeRe      = regexp.MustCompile(PatternIDCode)
	phoneRe       = regexp.MustCompile(PatternPhone)
)

// dateLayouts are tried in order when detecting date-time strings.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Infer derives a schema from one sample document value.
//
// Object keys are visited in RFC 8785 order because Go maps carry no order;
// use InferJSON to keep the key order of the original text.
func Infer(sample any) Schema {
	switch v := sample.(type) {
	case nil:
		return Null{}
	case bool:
		return Boolean{}
	case string:
		return inferString(v)
	case map[string]any:
		obj := NewObject()
		for _, k := range document.SortedKeys(v) {
			obj.Set(k, Infer(v[k]), true)
		}
		return obj
	case []any:
		items := make([]Schema, 0, len(v))
		for _, e := range v {
			items = append(items, Infer(e))
		}
		return &Array{Items: Merge(items...)}
	}
	if f, ok := document.ToFloat(sample); ok {
		return inferNumber(f)
	}
	// Anything else is not a JSON value; describe it by its string form.
	return &String{}
}

// InferAll infers each sample and merges the results.
func InferAll(samples ...any) Schema {
	schemas := make([]Schema, 0, len(samples))
	for _, s := range samples {
		schemas = append(schemas, Infer(s))
	}
	return Merge(schemas...)
}

// InferJSON infers a schema from JSON text, preserving the order in which
// object keys appear.
func InferJSON(data []byte) (Schema, error) {
	n, err := readOrdered(data)
	if err != nil {
		return nil, err
	}
	return inferNode(n), nil
}

func inferNode(n node) Schema {
	switch {
	case n.object != nil:
		obj := NewObject()
		for i, k := range n.object.keys {
			obj.Set(k, inferNode(n.object.values[i]), true)
		}
		return obj
	case n.isArray:
		items := make([]Schema, 0, len(n.array))
		for _, e := range n.array {
			items = append(items, inferNode(e))
		}
		return &Array{Items: Merge(items...)}
	default:
		return Infer(n.scalar)
	}
}

func inferNumber(f float64) Schema {
	if !math.IsInf(f, 0) && f == math.Trunc(f) {
		return Integer{}
	}
	return Number{}
}

func inferString(s string) Schema {
	if format := detectFormat(s); format != "" {
		return &String{Format: format}
	}
	return &String{Pattern: detectPattern(s)}
}

// detectFormat checks formats in fixed priority order; the first match wins.
func detectFormat(s string) string {
	switch {
	case emailRe.MatchString(s):
		return FormatEmail
	case isURI(s):
		return FormatURI
	case isDateTime(s):
		return FormatDateTime
	case uuidRe.MatchString(s):
		return FormatUUID
	}
	return ""
}

func isURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func isDateTime(s string) bool {
	if !strings.Contains(s, "-") {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// detectPattern returns a best-effort hint; it is never used to reject
// values.
func detectPattern(s string) string {
	switch {
	case countryCodeRe.MatchString(s):
		return PatternCountryCode
	case idCodeRe.MatchString(s):
		return PatternIDCode
	case phoneRe.MatchString(s):
		return PatternPhone
	}
	return ""
}

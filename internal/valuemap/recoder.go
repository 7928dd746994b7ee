package valuemap

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/edtacey/jsonmapper/internal/document"
)

// CustomMatcher evaluates table patterns for mappings of MatchCustom. It
// returns whether value satisfies pattern and the confidence of the match.
type CustomMatcher interface {
	Match(value any, pattern string, caseSensitive bool) (bool, float64)
}

// CustomMatcherFunc adapts a function to CustomMatcher.
type CustomMatcherFunc func(value any, pattern string, caseSensitive bool) (bool, float64)

// Match calls f.
func (f CustomMatcherFunc) Match(value any, pattern string, caseSensitive bool) (bool, float64) {
	return f(value, pattern, caseSensitive)
}

// Recoder applies value mappings. It is safe for concurrent use when its
// Cache is.
type Recoder struct {
	cache  *Cache
	custom CustomMatcher
	logger *slog.Logger
}

// RecoderOption configures a Recoder.
type RecoderOption func(*Recoder)

// WithCache shares compiled regexes through c.
func WithCache(c *Cache) RecoderOption {
	return func(r *Recoder) { r.cache = c }
}

// WithCustomMatcher installs the matcher used for MatchCustom mappings.
func WithCustomMatcher(m CustomMatcher) RecoderOption {
	return func(r *Recoder) { r.custom = m }
}

// WithLogger sets the logger used to report skipped table entries.
func WithLogger(l *slog.Logger) RecoderOption {
	return func(r *Recoder) { r.logger = l }
}

// NewRecoder creates a Recoder. Without WithCache it uses a private cache.
func NewRecoder(opts ...RecoderOption) *Recoder {
	r := &Recoder{}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewCache(nil)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Recode maps value through m. caseSensitive, when non-nil, overrides the
// mapping's own setting.
func (r *Recoder) Recode(value any, m *ValueMapping, caseSensitive *bool) Result {
	cs := m.CaseSensitive
	if caseSensitive != nil {
		cs = *caseSensitive
	}

	for i, e := range m.Table {
		ok, conf := r.match(m, value, e.Pattern, cs)
		if ok {
			return Result{Matched: true, Value: document.Clone(e.Value), Confidence: conf, Index: i}
		}
	}

	out := value
	if m.Default != nil {
		out = document.Clone(m.Default)
	}
	return Result{Matched: false, Value: out, Index: -1}
}

func (r *Recoder) match(m *ValueMapping, value any, pattern string, cs bool) (bool, float64) {
	switch m.MatchType {
	case MatchExact:
		return normalize(document.Stringify(value), cs) == normalize(pattern, cs), confidence[MatchExact]
	case MatchRegex:
		re, err := r.cache.Regexp(pattern, cs)
		if err != nil {
			r.logger.Debug("skipping invalid regex entry",
				"mapping", m.ID, "pattern", pattern, "error", err)
			return false, 0
		}
		return re.MatchString(norm.NFC.String(document.Stringify(value))), confidence[MatchRegex]
	case MatchRange:
		lo, hi, ok := parseRange(pattern)
		if !ok {
			r.logger.Debug("skipping invalid range entry", "mapping", m.ID, "pattern", pattern)
			return false, 0
		}
		n, ok := document.CoerceNumber(value)
		if !ok {
			return false, 0
		}
		return n >= lo && n <= hi, confidence[MatchRange]
	case MatchContains:
		return strings.Contains(normalize(document.Stringify(value), cs), normalize(pattern, cs)), confidence[MatchContains]
	case MatchPrefix:
		return strings.HasPrefix(normalize(document.Stringify(value), cs), normalize(pattern, cs)), confidence[MatchPrefix]
	case MatchSuffix:
		return strings.HasSuffix(normalize(document.Stringify(value), cs), normalize(pattern, cs)), confidence[MatchSuffix]
	case MatchCustom:
		if r.custom == nil {
			return false, 0
		}
		return r.custom.Match(value, pattern, cs)
	default:
		return false, 0
	}
}

// normalize applies NFC and, for case-insensitive comparison, Unicode case
// folding. A Caser is stateful, so one is created per call.
func normalize(s string, caseSensitive bool) string {
	s = norm.NFC.String(s)
	if caseSensitive {
		return s
	}
	return cases.Fold().String(s)
}

var rangeRe = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*-\s*(-?\d+(?:\.\d+)?)\s*$`)

// parseRange parses "min-max". Either bound may be negative ("-10--1").
func parseRange(s string) (lo, hi float64, ok bool) {
	m := rangeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	lo, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	hi, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

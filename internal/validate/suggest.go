package validate

import (
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/edtacey/jsonmapper/internal/fieldpath"
	"github.com/edtacey/jsonmapper/internal/schema"
)

// MaxSuggestions caps the "did you mean" list of one error.
const MaxSuggestions = 3

// Suggest proposes schema paths for a path that was not found. Candidates
// are paths whose last segment contains, or is contained in, the missing
// path's last segment (case-insensitive); they are ranked by edit distance
// between last segments, then by path.
func Suggest(s schema.Schema, missing fieldpath.Path) []string {
	want := strings.ToLower(missing.Last())
	if want == "" {
		return nil
	}

	type candidate struct {
		path string
		dist int
	}
	var cands []candidate
	for _, p := range fieldpath.SchemaPaths(s) {
		last := strings.ToLower(p.Last())
		if !strings.Contains(last, want) && !strings.Contains(want, last) {
			continue
		}
		cands = append(cands, candidate{path: p.String(), dist: levenshtein.ComputeDistance(want, last)})
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		if a.dist != b.dist {
			return a.dist - b.dist
		}
		return strings.Compare(a.path, b.path)
	})

	out := make([]string, 0, MaxSuggestions)
	for _, c := range cands {
		if len(out) == MaxSuggestions {
			break
		}
		out = append(out, c.path)
	}
	return out
}

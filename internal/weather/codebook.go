package weather

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/chrissnell/pvforecast/internal/types"
)

// Codebook maps textual descriptors of the forecast to numeric codes, per
// column.  Patterns match case-insensitively as substrings.
type Codebook struct {
	columns map[string][]rule
}

type rule struct {
	pattern string
	code    float64
}

// Columns a codebook can translate.
const (
	ColumnW1 = "W1"
	ColumnN  = "N"
	ColumnNh = "Nh"
)

// LoadCodebook reads a codebook from a JSON file shaped like
// {"W1": {"<substring>": code, ...}, "N": {...}}.
func LoadCodebook(path string) (*Codebook, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrReferenceDataMissing, err)
	}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: could not decode codebook %s: %v", types.ErrReferenceDataMissing, path, err)
	}
	return NewCodebook(raw), nil
}

// NewCodebook builds a codebook from column -> pattern -> code.
func NewCodebook(raw map[string]map[string]float64) *Codebook {
	cb := &Codebook{columns: make(map[string][]rule, len(raw))}
	for col, patterns := range raw {
		rules := make([]rule, 0, len(patterns))
		for p, code := range patterns {
			p = normalize(p)
			if p == "" {
				continue
			}
			rules = append(rules, rule{pattern: p, code: code})
		}
		// Longest pattern first so "облачно с прояснениями" beats "облачно".
		sort.Slice(rules, func(i, j int) bool {
			li, lj := len([]rune(rules[i].pattern)), len([]rune(rules[j].pattern))
			if li != lj {
				return li > lj
			}
			return rules[i].pattern < rules[j].pattern
		})
		cb.columns[col] = rules
	}
	return cb
}

// normalize folds look-alike Latin letters into Cyrillic, trims and lowercases.
func normalize(s string) string {
	s = strings.NewReplacer("C", "С", "c", "с").Replace(s)
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup translates one descriptor of column.  Text that no pattern matches is
// returned unchanged.
func (cb *Codebook) Lookup(column string, value types.Field) types.Field {
	text := normalize(string(value))
	if text == "" {
		return value
	}
	for _, r := range cb.columns[column] {
		if strings.Contains(text, r.pattern) {
			return types.Field(strconv.FormatFloat(r.code, 'g', -1, 64))
		}
	}
	return value
}

// Apply translates the W1, N and Nh columns of every observation and returns
// the result as a new slice.
func (cb *Codebook) Apply(obs []types.WeatherObservation) []types.WeatherObservation {
	out := make([]types.WeatherObservation, len(obs))
	for i, o := range obs {
		o.W1 = cb.Lookup(ColumnW1, o.W1)
		o.N = cb.Lookup(ColumnN, o.N)
		o.Nh = cb.Lookup(ColumnNh, o.Nh)
		out[i] = o
	}
	return out
}

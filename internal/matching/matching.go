// Package matching links free-text owner names to registry companies.
package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/parse"
)

// DefaultMinRatio is the shortest/longest length ratio a substring match needs.
const DefaultMinRatio = 0.8

// Match is a candidate accepted by a strategy. Score is 1 for an exact match.
type Match struct {
	Company *models.Company
	Score   float64
}

// Strategy decides which candidates a name refers to.
type Strategy interface {
	Name() string
	Match(name string, candidates []*models.Company) []Match
}

// New returns the strategy registered under name.
func New(name string, minRatio float64) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "exact":
		return Exact{}, nil
	case "", "substring":
		return Substring{MinRatio: minRatio}, nil
	}
	return nil, fmt.Errorf("unknown matching strategy %q", name)
}

// Exact accepts candidates whose normalized name or alias equals the name.
type Exact struct{}

func (Exact) Name() string { return "exact" }

func (Exact) Match(name string, candidates []*models.Company) []Match {
	target := parse.NormalizeName(name)
	if target == "" {
		return nil
	}
	var out []Match
	for _, c := range candidates {
		for _, n := range names(c) {
			if n == target {
				out = append(out, Match{Company: c, Score: 1})
				break
			}
		}
	}
	return out
}

// Substring accepts candidates where one normalized name contains the other
// and the shorter is at least MinRatio of the longer.
type Substring struct {
	MinRatio float64
}

func (Substring) Name() string { return "substring" }

func (s Substring) Match(name string, candidates []*models.Company) []Match {
	target := parse.NormalizeName(name)
	if target == "" {
		return nil
	}
	min := s.MinRatio
	if min <= 0 || min > 1 {
		min = DefaultMinRatio
	}

	var out []Match
	for _, c := range candidates {
		best := 0.0
		for _, n := range names(c) {
			if score := containment(target, n); score > best {
				best = score
			}
		}
		if best >= min {
			out = append(out, Match{Company: c, Score: best})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Best returns the single top match, or ok=false when there is none or the
// top score is shared by several companies.
func Best(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	top := matches[0]
	for _, m := range matches[1:] {
		if m.Score > top.Score {
			top = m
		}
	}
	for _, m := range matches {
		if m.Company.ID != top.Company.ID && m.Score == top.Score {
			return Match{}, false
		}
	}
	return top, true
}

func containment(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if !strings.Contains(long, short) {
		return 0
	}
	return float64(len([]rune(short))) / float64(len([]rune(long)))
}

func names(c *models.Company) []string {
	out := make([]string, 0, 1+len(c.OtherNames))
	if c.NormalizedName != "" {
		out = append(out, c.NormalizedName)
	} else {
		out = append(out, parse.NormalizeName(c.Name))
	}
	for _, other := range c.OtherNames {
		if n := parse.NormalizeName(other); n != "" {
			out = append(out, n)
		}
	}
	return out
}

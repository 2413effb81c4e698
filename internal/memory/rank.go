package memory

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Ranking weights. Content overlap dominates, with context match and the
// emotional term close behind and a small recency tail.
const (
	weightContent = 0.35
	weightContext = 0.25
	weightEmotion = 0.25
	weightRecency = 0.15

	// Token sets are capped before comparison so a pathological content
	// blob cannot make a single rank call expensive.
	maxTokens = 64

	// Recency decays on an hourly scale.
	recencyHalfLifeHours = 1.0
)

// Context carries the retrieval-side situation a query is ranked against.
type Context struct {
	Topics    []string
	Location  string
	Activity  string
	Emotional *EmotionalState
}

// Ranked pairs a record with its relevance score.
type Ranked struct {
	Record *Record
	Score  float64
}

// Rank scores candidates against a query and context and returns them
// best first. Pure read: no candidate is mutated. The sort is stable and
// ties break by ascending record id, so a fixed input always produces an
// identical ordering.
func Rank(query string, ctx Context, candidates []*Record, now time.Time) []Ranked {
	queryTokens := tokenize(query)

	ranked := make([]Ranked, 0, len(candidates))
	for _, r := range candidates {
		score := weightContent * jaccard(queryTokens, tokenize(r.Content))
		score += weightContext * contextMatch(ctx, r)
		score += weightEmotion * r.Importance * r.Intensity()
		score += weightRecency * recency(r, now)
		ranked = append(ranked, Ranked{Record: r, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Record.ID < ranked[j].Record.ID
	})
	return ranked
}

// tokenize lowercases and splits on whitespace, keeping at most
// maxTokens distinct tokens.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tokens[tok] = true
		if len(tokens) >= maxTokens {
			break
		}
	}
	return tokens
}

// jaccard is |intersection| / |union| over two token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for tok := range a {
		if b[tok] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// contextMatch is the fraction of context facets the record agrees with.
// Only facets present in the context count toward the denominator.
func contextMatch(ctx Context, r *Record) float64 {
	matched, total := 0.0, 0.0

	if len(ctx.Topics) > 0 {
		total++
		recordTopics := make(map[string]bool, len(r.Metadata.Topics))
		for _, t := range r.Metadata.Topics {
			recordTopics[t] = true
		}
		shared := 0
		for _, t := range ctx.Topics {
			if recordTopics[t] {
				shared++
			}
		}
		matched += float64(shared) / float64(len(ctx.Topics))
	}
	if ctx.Location != "" {
		total++
		if r.Metadata.Location == ctx.Location {
			matched++
		}
	}
	if ctx.Activity != "" {
		total++
		if r.Metadata.Activity == ctx.Activity {
			matched++
		}
	}
	if ctx.Emotional != nil && r.Emotional != nil {
		total++
		matched += clamp01(EmotionalSimilarity(ctx.Emotional, r.Emotional))
	}

	if total == 0 {
		return 0
	}
	return matched / total
}

// recency decays exponentially with age on an hourly scale.
func recency(r *Record, now time.Time) float64 {
	hours := r.Age(now).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / recencyHalfLifeHours)
}

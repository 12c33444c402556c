package quality

import (
	"sort"
	"time"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

// Suggestion is an actionable hint for raising an entry's quality score.
type Suggestion struct {
	Component string  `json:"component"`
	Message   string  `json:"message"`
	Headroom  float64 `json:"headroom"`
}

// Insights is the explanatory view of an entry's score.
type Insights struct {
	Result
	Suggestions []Suggestion `json:"suggestions"`
}

// Explain scores e and lists the components with the most unclaimed weight,
// largest headroom first. Components at or above 90% of their weight are omitted.
func Explain(e model.KnowledgeEntry, now time.Time) Insights {
	r := Score(e, now)
	b := r.Breakdown

	candidates := []Suggestion{
		{Component: "base", Message: "Improve the success rate reported by agents who applied this entry", Headroom: WeightSuccess - b.Base},
		{Component: "usage", Message: "Share the entry where it applies so it accumulates usage", Headroom: WeightUsage - b.Usage},
		{Component: "votes", Message: "Collect more upvotes from agents who found it useful", Headroom: WeightVotes - b.Votes},
		{Component: "verification", Message: "Request verification of the entry", Headroom: WeightVerification - b.Verification},
		{Component: "recent_usage", Message: "Refresh the entry so it reflects current practice", Headroom: WeightRecentUsage - b.RecentUsage},
	}
	weights := map[string]float64{
		"base":         WeightSuccess,
		"usage":        WeightUsage,
		"votes":        WeightVotes,
		"verification": WeightVerification,
		"recent_usage": WeightRecentUsage,
	}

	var out []Suggestion
	for _, c := range candidates {
		if c.Headroom <= weights[c.Component]*0.1 {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Headroom > out[j].Headroom })
	if out == nil {
		out = []Suggestion{}
	}
	return Insights{Result: r, Suggestions: out}
}

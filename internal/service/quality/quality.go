// Package quality provides knowledge entry quality and trust scoring.
// Quality scores (0.0-1.0) estimate how good and trustworthy an entry is
// and are used to rank feeds, weight graph nodes, and break ties.
package quality

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/parallel"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/telemetry"
)

// Component weights. Each component is normalized to [0, weight].
const (
	WeightSuccess      = 0.40
	WeightUsage        = 0.20
	WeightVotes        = 0.20
	WeightVerification = 0.10
	WeightAge          = 0.05
	WeightRecentUsage  = 0.05

	// UsageSaturation is the usage count at which the usage component maxes out.
	UsageSaturation = 50

	// VerifiedTrustBonus is added to quality to form trust for verified entries.
	VerifiedTrustBonus = 0.10

	recencyWindow = 7 * 24 * time.Hour
	ageHorizon    = 365 * 24 * time.Hour
)

// Tier is the display bucket of a quality score.
type Tier string

const (
	TierExcellent        Tier = "excellent"
	TierGood             Tier = "good"
	TierFair             Tier = "fair"
	TierNeedsImprovement Tier = "needs_improvement"
)

// TierFor buckets a quality score.
func TierFor(score float64) Tier {
	switch {
	case score >= 0.8:
		return TierExcellent
	case score >= 0.6:
		return TierGood
	case score >= 0.4:
		return TierFair
	default:
		return TierNeedsImprovement
	}
}

// Breakdown holds each weighted component of a quality score.
type Breakdown struct {
	Base         float64 `json:"base"`
	Usage        float64 `json:"usage"`
	Votes        float64 `json:"votes"`
	Verification float64 `json:"verification"`
	Age          float64 `json:"age"`
	RecentUsage  float64 `json:"recent_usage"`
}

// Sum returns the unclamped total of all components.
func (b Breakdown) Sum() float64 {
	return b.Base + b.Usage + b.Votes + b.Verification + b.Age + b.RecentUsage
}

// Result is the scored view of one knowledge entry.
type Result struct {
	EntryID      int64     `json:"entry_id"`
	QualityScore float64   `json:"quality_score"`
	TrustScore   float64   `json:"trust_score"`
	Tier         Tier      `json:"tier"`
	Breakdown    Breakdown `json:"breakdown"`
}

// Score computes quality and trust for an entry as of now.
// It is total over well-formed input: zero votes, zero usage and empty tags
// are ordinary states. Out-of-range fields are clamped rather than rejected;
// ScoreBatch is the validating entry point.
//
// "Recent usage" is approximated from updated_at because no access log exists.
func Score(e model.KnowledgeEntry, now time.Time) Result {
	var b Breakdown

	b.Base = clamp01(e.SuccessRate) * WeightSuccess

	if e.UsageCount > 0 {
		usage := math.Log1p(float64(e.UsageCount)) / math.Log1p(UsageSaturation)
		b.Usage = math.Min(1, usage) * WeightUsage
	}

	up, down := max(e.Upvotes, 0), max(e.Downvotes, 0)
	if up+down > 0 {
		b.Votes = float64(up) / float64(up+down+1) * WeightVotes
	}

	if e.Verified {
		b.Verification = WeightVerification
	}

	if !e.CreatedAt.IsZero() {
		if age := now.Sub(e.CreatedAt); age > 0 {
			b.Age = math.Min(WeightAge, float64(age)/float64(ageHorizon)*WeightAge)
		}
	}

	if !e.UpdatedAt.IsZero() {
		since := now.Sub(e.UpdatedAt)
		if since < 0 {
			since = 0
		}
		if since < recencyWindow {
			factor := 1 - float64(since)/float64(recencyWindow)
			b.RecentUsage = math.Min(WeightRecentUsage, factor*WeightRecentUsage)
		}
	}

	quality := clamp01(b.Sum())
	trust := quality
	if e.Verified {
		trust = math.Min(1, quality+VerifiedTrustBonus)
	}

	return Result{
		EntryID:      e.ID,
		QualityScore: quality,
		TrustScore:   trust,
		Tier:         TierFor(quality),
		Breakdown:    b,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Scorer scores batches of entries on a bounded worker pool.
type Scorer struct {
	logger  *slog.Logger
	workers int
	now     func() time.Time

	scored     metric.Int64Counter
	scoreValue metric.Float64Histogram
}

// NewScorer creates a batch scorer. workers <= 0 sizes the pool to GOMAXPROCS.
func NewScorer(logger *slog.Logger, workers int) *Scorer {
	meter := telemetry.Meter("relevance/quality")
	scored, _ := meter.Int64Counter("relevance.quality.scored",
		metric.WithDescription("Knowledge entries scored, by outcome"),
	)
	scoreValue, _ := meter.Float64Histogram("relevance.quality.score",
		metric.WithDescription("Distribution of computed quality scores"),
	)
	return &Scorer{
		logger:     logger,
		workers:    workers,
		now:        time.Now,
		scored:     scored,
		scoreValue: scoreValue,
	}
}

// WithClock returns a copy of s that reads the current time from now.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	cp := *s
	cp.now = now
	return &cp
}

// Now returns the scorer's current time.
func (s *Scorer) Now() time.Time {
	return s.now()
}

// ScoreBatch validates and scores every entry. Invalid entries are reported
// per item and never fail the batch. The returned map is keyed by entry id.
func (s *Scorer) ScoreBatch(ctx context.Context, entries []model.KnowledgeEntry) (map[int64]Result, model.ItemErrors, error) {
	now := s.now()
	results := make([]*Result, len(entries))
	errs := make([]error, len(entries))

	err := parallel.ForEach(ctx, len(entries), s.workers, func(_ context.Context, i int) error {
		if verr := model.Validate(entries[i]); verr != nil {
			errs[i] = verr
			return nil
		}
		r := Score(entries[i], now)
		results[i] = &r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	out := make(map[int64]Result, len(entries))
	var failed model.ItemErrors
	for i, r := range results {
		if errs[i] != nil {
			failed.Add(entries[i].ID, errs[i])
			continue
		}
		out[r.EntryID] = *r
		s.scoreValue.Record(ctx, r.QualityScore)
	}
	s.scored.Add(ctx, int64(len(out)), metric.WithAttributes(attribute.String("outcome", "ok")))
	if len(failed) > 0 {
		s.scored.Add(ctx, int64(len(failed)), metric.WithAttributes(attribute.String("outcome", "invalid")))
		s.logger.Warn("quality: rejected invalid entries", failed.LogAttrs()...)
	}
	return out, failed, nil
}

// QualityIndex maps entry ids to quality scores for tie-breaking.
type QualityIndex map[int64]float64

// Index scores entries (without validation) and returns their quality by id.
func Index(entries []model.KnowledgeEntry, now time.Time) QualityIndex {
	idx := make(QualityIndex, len(entries))
	for _, e := range entries {
		idx[e.ID] = Score(e, now).QualityScore
	}
	return idx
}

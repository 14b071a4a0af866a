// Package classifier turns raw model scores into risk-tiered prediction
// results.
package classifier

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"time"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/model"
)

// scoreCacheTTL bounds how long a memoized score is kept. Scores are pure
// functions of the vector, so the TTL only limits memory, not correctness.
const scoreCacheTTL = 15 * time.Minute

// Classifier wraps the scoring function and applies the fixed risk
// thresholds. Stateless apart from the optional score cache; safe for
// concurrent use.
type Classifier struct {
	scorer model.Scorer
	cache  domain.Cache
}

// New creates a classifier around a scorer. A nil scorer is allowed: the
// service then starts degraded and every Classify call reports
// model.ErrUnavailable. cache may be nil to disable memoization.
func New(scorer model.Scorer, cache domain.Cache) *Classifier {
	return &Classifier{scorer: scorer, cache: cache}
}

// Classify scores a feature vector and derives the risk tier and churn call.
// Idempotent: the same vector always yields the same result.
func (c *Classifier) Classify(ctx context.Context, vector domain.FeatureVector) (*domain.PredictionResult, error) {
	if c.scorer == nil {
		return nil, model.ErrUnavailable
	}

	key := vectorKey(vector)

	if pct, ok := c.cachedScore(ctx, key); ok {
		return resultFor(pct), nil
	}

	raw, err := c.scorer.Score(vector)
	if err != nil {
		return nil, fmt.Errorf("scoring failed: %w", err)
	}

	pct := NormalizeProbability(raw)
	c.storeScore(ctx, key, pct)

	return resultFor(pct), nil
}

// NormalizeProbability converts a raw score to a percentage in [0,100]
// rounded to two decimals. Scores in (1,100] are taken as percentages
// already; scores in [0,1] as fractions.
func NormalizeProbability(raw float64) float64 {
	pct := raw
	if pct <= 1.0 {
		pct = pct * 100
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*100) / 100
}

// RiskLevelFor maps a probability percentage to its tier. Boundaries are
// closed below, open above, except the final bucket which includes 100.
func RiskLevelFor(pct float64) string {
	switch {
	case pct < 25:
		return domain.RiskLow
	case pct < 50:
		return domain.RiskMedium
	case pct < 75:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

func resultFor(pct float64) *domain.PredictionResult {
	return &domain.PredictionResult{
		Probability: pct,
		RiskLevel:   RiskLevelFor(pct),
		WillChurn:   pct >= 50,
	}
}

// cachedScore looks up a memoized percentage for a vector key.
func (c *Classifier) cachedScore(ctx context.Context, key string) (float64, bool) {
	if c.cache == nil {
		return 0, false
	}
	val, err := c.cache.Get(ctx, key)
	if err != nil || val == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(string(val), 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func (c *Classifier) storeScore(ctx context.Context, key string, pct float64) {
	if c.cache == nil {
		return
	}
	_ = c.cache.Set(ctx, key, []byte(strconv.FormatFloat(pct, 'f', -1, 64)), scoreCacheTTL)
}

// vectorKey hashes a feature vector into a cache key. Encoding is
// deterministic, so equal vectors share a key.
func vectorKey(vector domain.FeatureVector) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, f := range vector {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	return "score:" + strconv.FormatUint(h.Sum64(), 16)
}

package domain

import (
	"time"
)

// Risk tiers derived from churn probability via fixed thresholds.
const (
	RiskLow      = "Low"      // [0, 25)
	RiskMedium   = "Medium"   // [25, 50)
	RiskHigh     = "High"     // [50, 75)
	RiskCritical = "Critical" // [75, 100]
)

// RiskLevels lists all tiers in ascending order of severity.
var RiskLevels = []string{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Prediction type constants.
const (
	PredictionTypeSingle = "single"
	PredictionTypeBatch  = "batch"
)

// PredictionResult is the outcome of classifying one feature vector.
// Probability is a percentage in [0,100] rounded to two decimals.
type PredictionResult struct {
	Probability float64 `json:"churn_probability"`
	RiskLevel   string  `json:"risk_level"`
	WillChurn   bool    `json:"will_churn"`
}

// PredictionRecord is one persisted entry in the history log.
// Created exactly once by HistoryStore.Insert and never mutated.
type PredictionRecord struct {
	ID             int64              `json:"id"`
	CustomerID     string             `json:"customer_id,omitempty"`
	CustomerData   CustomerAttributes `json:"customer_data"`
	Probability    float64            `json:"churn_probability"`
	RiskLevel      string             `json:"risk_level"`
	WillChurn      bool               `json:"will_churn"`
	PredictionType string             `json:"prediction_type"`
	CreatedAt      time.Time          `json:"created_at"`
}

// BatchPrediction is one successful row outcome within a batch, tagged with
// the source row's customer identifier.
type BatchPrediction struct {
	CustomerID string `json:"customer_id"`
	PredictionResult
}

// RowFailure records a batch row that failed to parse or encode.
type RowFailure struct {
	Index      int    `json:"row_index"`
	CustomerID string `json:"customer_id,omitempty"`
	Reason     string `json:"reason"`
}

// BatchSummary is the response for one batch call. TotalCustomers counts
// successful rows only; failed rows are reported in Failures.
type BatchSummary struct {
	TotalCustomers          int               `json:"total_customers"`
	PredictedChurners       int               `json:"predicted_churners"`
	ChurnRate               float64           `json:"churn_rate"`
	AverageChurnProbability float64           `json:"average_churn_probability"`
	RiskDistribution        map[string]int    `json:"risk_distribution"`
	Predictions             []BatchPrediction `json:"predictions"`
	Failures                []RowFailure      `json:"failures,omitempty"`
}

// TrendBucket is one calendar day of history with its mean probability.
// Days with no predictions are omitted, not zero-filled.
type TrendBucket struct {
	Date               string  `json:"date"` // YYYY-MM-DD, UTC
	Count              int     `json:"count"`
	AverageProbability float64 `json:"avg_prob"`
}

// HistoryStats is recomputed from the full prediction log on demand.
type HistoryStats struct {
	TotalPredictions   int            `json:"total_predictions"`
	OverallChurnRate   float64        `json:"overall_churn_rate"`
	AverageProbability float64        `json:"average_probability"`
	RiskDistribution   map[string]int `json:"risk_distribution"`
	RecentTrend        []TrendBucket  `json:"recent_trend"`
}

// ModelMetrics holds the training metrics embedded in the scoring artifact.
// They are surfaced verbatim; this service never computes them.
type ModelMetrics struct {
	Accuracy     float64 `json:"accuracy"`
	TrainSamples int     `json:"train_samples"`
	TestSamples  int     `json:"test_samples"`
	TotalSamples int     `json:"total_samples"`
}

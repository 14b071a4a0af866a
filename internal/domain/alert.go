package domain

import "time"

// AlertRule is a CEL expression evaluated against each completed prediction.
// A rule that evaluates to true triggers an alert event.
type AlertRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Severity    string `json:"severity"` // "info", "warning", "critical"
	Enabled     bool   `json:"enabled"`
}

// Alert is published to the alert topic when a rule triggers.
type Alert struct {
	RuleID         string    `json:"ruleId"`
	RuleName       string    `json:"ruleName"`
	Severity       string    `json:"severity"`
	CustomerID     string    `json:"customerId,omitempty"`
	PredictionID   int64     `json:"predictionId,omitempty"`
	Probability    float64   `json:"churnProbability"`
	RiskLevel      string    `json:"riskLevel"`
	PredictionType string    `json:"predictionType"`
	Timestamp      time.Time `json:"timestamp"`
}

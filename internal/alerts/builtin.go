package alerts

import "github.com/neha-iitjdh/ChurnShield-AI/internal/domain"

// BuiltinRules returns the default alert rules loaded at startup.
// Deployments can replace them via ReloadRules.
func BuiltinRules() []*domain.AlertRule {
	return []*domain.AlertRule{
		{
			ID:          "critical-risk",
			Name:        "Critical churn risk",
			Description: "Customer scored in the Critical risk tier",
			Expression:  `risk_level == "Critical"`,
			Severity:    "critical",
			Enabled:     true,
		},
		{
			ID:          "early-tenure-churn",
			Name:        "Early tenure churn risk",
			Description: "New customer already likely to churn",
			Expression:  `will_churn && tenure < 6`,
			Severity:    "warning",
			Enabled:     true,
		},
		{
			ID:          "high-value-churn",
			Name:        "High value churn risk",
			Description: "Likely churner paying above-average monthly charges",
			Expression:  `will_churn && monthly_charges > 90.0`,
			Severity:    "warning",
			Enabled:     true,
		},
	}
}

package domain

// CustomerAttributes is the raw input for a single prediction.
//
// Field names mirror the Telco churn dataset columns. Optional fields are
// pointers so the encoder can tell an absent field (default applies) from a
// present-but-invalid value (which must be rejected).
type CustomerAttributes struct {
	Gender           *string  `json:"gender,omitempty"`
	SeniorCitizen    *int     `json:"SeniorCitizen,omitempty"`
	Partner          *string  `json:"Partner,omitempty"`
	Dependents       *string  `json:"Dependents,omitempty"`
	Tenure           *int     `json:"tenure"`
	Contract         *string  `json:"Contract"`
	PaperlessBilling *string  `json:"PaperlessBilling,omitempty"`
	PaymentMethod    *string  `json:"PaymentMethod"`
	InternetService  *string  `json:"InternetService,omitempty"`
	OnlineSecurity   *string  `json:"OnlineSecurity,omitempty"`
	TechSupport      *string  `json:"TechSupport,omitempty"`
	MonthlyCharges   *float64 `json:"MonthlyCharges"`
	TotalCharges     *float64 `json:"TotalCharges"`
}

// FeatureVector is the fixed-order numeric encoding of a customer's
// attributes consumed by the scoring function.
type FeatureVector []float64

// String pointer helpers for building attributes in callers and tests.

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }

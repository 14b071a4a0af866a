package encoder

// Encoding is the versioned categorical-encoding artifact shared between the
// feature encoder and the scoring model. The model loader refuses artifacts
// trained against a different version, so encoder and classifier can never
// silently disagree on feature order or categorical codes.
type Encoding struct {
	// Version identifies the table set; bumped whenever a table or the
	// feature order changes.
	Version string

	// FeatureOrder is the exact column order the model was trained with.
	FeatureOrder []string

	// Categorical code tables, one per text field. Codes match the
	// alphabetical label encoding used at training time.
	Gender           map[string]float64
	YesNo            map[string]float64
	Contract         map[string]float64
	PaymentMethod    map[string]float64
	InternetService  map[string]float64
	InternetAddon    map[string]float64 // OnlineSecurity, TechSupport
}

// TelcoV1 is the encoding the bundled classifier was trained with.
func TelcoV1() *Encoding {
	return &Encoding{
		Version: "telco-v1",
		FeatureOrder: []string{
			"gender", "SeniorCitizen", "Partner", "Dependents",
			"tenure", "Contract", "PaperlessBilling", "PaymentMethod",
			"InternetService", "OnlineSecurity", "TechSupport",
			"MonthlyCharges", "TotalCharges",
		},
		Gender: map[string]float64{
			"Female": 0,
			"Male":   1,
		},
		YesNo: map[string]float64{
			"No":  0,
			"Yes": 1,
		},
		Contract: map[string]float64{
			"Month-to-month": 0,
			"One year":       1,
			"Two year":       2,
		},
		PaymentMethod: map[string]float64{
			"Bank transfer (automatic)": 0,
			"Credit card (automatic)":   1,
			"Electronic check":          2,
			"Mailed check":              3,
		},
		InternetService: map[string]float64{
			"DSL":         0,
			"Fiber optic": 1,
			"No":          2,
		},
		InternetAddon: map[string]float64{
			"No":                  0,
			"No internet service": 1,
			"Yes":                 2,
		},
	}
}

// Defaults applied to absent optional fields. Present values, valid or not,
// are never substituted.
const (
	DefaultGender           = "Male"
	DefaultSeniorCitizen    = 0
	DefaultPartner          = "No"
	DefaultDependents       = "No"
	DefaultPaperlessBilling = "Yes"
	DefaultInternetService  = "Fiber optic"
	DefaultOnlineSecurity   = "No"
	DefaultTechSupport      = "No"
)

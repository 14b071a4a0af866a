// Package encoder converts raw customer attributes into the fixed-length
// numeric vector the scoring model expects.
package encoder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
)

// InvalidAttributeError reports a missing mandatory field or a present value
// outside its documented domain. Inspect with errors.As.
type InvalidAttributeError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidAttributeError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid attribute %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid attribute %q (got %q): %s", e.Field, e.Value, e.Reason)
}

// Encoder is a stateless transformer from CustomerAttributes to
// FeatureVector. Safe for unlimited concurrent callers.
type Encoder struct {
	enc *Encoding
}

// New creates an encoder bound to an encoding artifact.
func New(enc *Encoding) *Encoder {
	return &Encoder{enc: enc}
}

// Encoding returns the encoding artifact this encoder is bound to.
func (e *Encoder) Encoding() *Encoding {
	return e.enc
}

// Encode produces the feature vector for one customer. Absent optional
// fields take their documented defaults; absent mandatory fields and
// out-of-domain values fail with *InvalidAttributeError. Field-wise equal
// inputs always produce identical vectors.
func (e *Encoder) Encode(attrs *domain.CustomerAttributes) (domain.FeatureVector, error) {
	if attrs == nil {
		return nil, &InvalidAttributeError{Field: "customer", Reason: "attributes are required"}
	}

	// Mandatory numeric fields.
	if attrs.Tenure == nil {
		return nil, &InvalidAttributeError{Field: "tenure", Reason: "field is required"}
	}
	if *attrs.Tenure < 0 {
		return nil, &InvalidAttributeError{Field: "tenure", Value: fmt.Sprintf("%d", *attrs.Tenure), Reason: "must be >= 0"}
	}
	if attrs.MonthlyCharges == nil {
		return nil, &InvalidAttributeError{Field: "MonthlyCharges", Reason: "field is required"}
	}
	if *attrs.MonthlyCharges < 0 {
		return nil, &InvalidAttributeError{Field: "MonthlyCharges", Value: fmt.Sprintf("%g", *attrs.MonthlyCharges), Reason: "must be >= 0"}
	}
	if attrs.TotalCharges == nil {
		return nil, &InvalidAttributeError{Field: "TotalCharges", Reason: "field is required"}
	}
	if *attrs.TotalCharges < 0 {
		return nil, &InvalidAttributeError{Field: "TotalCharges", Value: fmt.Sprintf("%g", *attrs.TotalCharges), Reason: "must be >= 0"}
	}

	// Optional SeniorCitizen is 0/1 in the Telco dataset.
	senior := float64(DefaultSeniorCitizen)
	if attrs.SeniorCitizen != nil {
		if *attrs.SeniorCitizen != 0 && *attrs.SeniorCitizen != 1 {
			return nil, &InvalidAttributeError{Field: "SeniorCitizen", Value: fmt.Sprintf("%d", *attrs.SeniorCitizen), Reason: "must be 0 or 1"}
		}
		senior = float64(*attrs.SeniorCitizen)
	}

	gender, err := e.lookup("gender", attrs.Gender, DefaultGender, e.enc.Gender)
	if err != nil {
		return nil, err
	}
	partner, err := e.lookup("Partner", attrs.Partner, DefaultPartner, e.enc.YesNo)
	if err != nil {
		return nil, err
	}
	dependents, err := e.lookup("Dependents", attrs.Dependents, DefaultDependents, e.enc.YesNo)
	if err != nil {
		return nil, err
	}
	contract, err := e.lookup("Contract", attrs.Contract, "", e.enc.Contract)
	if err != nil {
		return nil, err
	}
	paperless, err := e.lookup("PaperlessBilling", attrs.PaperlessBilling, DefaultPaperlessBilling, e.enc.YesNo)
	if err != nil {
		return nil, err
	}
	payment, err := e.lookup("PaymentMethod", attrs.PaymentMethod, "", e.enc.PaymentMethod)
	if err != nil {
		return nil, err
	}
	internet, err := e.lookup("InternetService", attrs.InternetService, DefaultInternetService, e.enc.InternetService)
	if err != nil {
		return nil, err
	}
	security, err := e.lookup("OnlineSecurity", attrs.OnlineSecurity, DefaultOnlineSecurity, e.enc.InternetAddon)
	if err != nil {
		return nil, err
	}
	support, err := e.lookup("TechSupport", attrs.TechSupport, DefaultTechSupport, e.enc.InternetAddon)
	if err != nil {
		return nil, err
	}

	// Assembled in the order of Encoding.FeatureOrder.
	return domain.FeatureVector{
		gender,
		senior,
		partner,
		dependents,
		float64(*attrs.Tenure),
		contract,
		paperless,
		payment,
		internet,
		security,
		support,
		*attrs.MonthlyCharges,
		*attrs.TotalCharges,
	}, nil
}

// lookup resolves a categorical value against its code table. A nil value
// takes def; def == "" marks the field mandatory.
func (e *Encoder) lookup(field string, value *string, def string, table map[string]float64) (float64, error) {
	raw := def
	if value != nil {
		raw = *value
	} else if def == "" {
		return 0, &InvalidAttributeError{Field: field, Reason: "field is required"}
	}

	code, ok := table[raw]
	if !ok {
		return 0, &InvalidAttributeError{
			Field:  field,
			Value:  raw,
			Reason: "expected one of: " + strings.Join(tableKeys(table), ", "),
		}
	}
	return code, nil
}

func tableKeys(table map[string]float64) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

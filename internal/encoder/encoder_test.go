package encoder

import (
	"errors"
	"strings"
	"testing"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
)

// fullAttributes returns a complete, valid customer.
func fullAttributes() *domain.CustomerAttributes {
	return &domain.CustomerAttributes{
		Gender:           domain.StringPtr("Female"),
		SeniorCitizen:    domain.IntPtr(0),
		Partner:          domain.StringPtr("Yes"),
		Dependents:       domain.StringPtr("No"),
		Tenure:           domain.IntPtr(2),
		Contract:         domain.StringPtr("Month-to-month"),
		PaperlessBilling: domain.StringPtr("Yes"),
		PaymentMethod:    domain.StringPtr("Electronic check"),
		InternetService:  domain.StringPtr("Fiber optic"),
		OnlineSecurity:   domain.StringPtr("No"),
		TechSupport:      domain.StringPtr("No"),
		MonthlyCharges:   domain.FloatPtr(95.5),
		TotalCharges:     domain.FloatPtr(191.0),
	}
}

func TestEncode(t *testing.T) {
	enc := New(TelcoV1())

	t.Run("FullCustomer", func(t *testing.T) {
		vector, err := enc.Encode(fullAttributes())
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		want := domain.FeatureVector{
			0,    // gender: Female
			0,    // SeniorCitizen
			1,    // Partner: Yes
			0,    // Dependents: No
			2,    // tenure
			0,    // Contract: Month-to-month
			1,    // PaperlessBilling: Yes
			2,    // PaymentMethod: Electronic check
			1,    // InternetService: Fiber optic
			0,    // OnlineSecurity: No
			0,    // TechSupport: No
			95.5, // MonthlyCharges
			191.0,
		}
		if len(vector) != len(want) {
			t.Fatalf("expected %d features, got %d", len(want), len(vector))
		}
		for i := range want {
			if vector[i] != want[i] {
				t.Errorf("feature %d (%s): expected %g, got %g",
					i, enc.Encoding().FeatureOrder[i], want[i], vector[i])
			}
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		first, err := enc.Encode(fullAttributes())
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		for i := 0; i < 20; i++ {
			again, err := enc.Encode(fullAttributes())
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			for j := range first {
				if again[j] != first[j] {
					t.Fatalf("encoding not deterministic at feature %d", j)
				}
			}
		}
	})

	t.Run("OptionalDefaults", func(t *testing.T) {
		// Only mandatory fields present.
		attrs := &domain.CustomerAttributes{
			Tenure:         domain.IntPtr(10),
			Contract:       domain.StringPtr("One year"),
			PaymentMethod:  domain.StringPtr("Mailed check"),
			MonthlyCharges: domain.FloatPtr(50.0),
			TotalCharges:   domain.FloatPtr(500.0),
		}

		vector, err := enc.Encode(attrs)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		// gender defaults to Male (1), Partner/Dependents to No (0),
		// PaperlessBilling to Yes (1), InternetService to Fiber optic (1),
		// OnlineSecurity and TechSupport to No (0).
		if vector[0] != 1 {
			t.Errorf("gender default: expected 1, got %g", vector[0])
		}
		if vector[2] != 0 || vector[3] != 0 {
			t.Errorf("Partner/Dependents defaults: expected 0/0, got %g/%g", vector[2], vector[3])
		}
		if vector[6] != 1 {
			t.Errorf("PaperlessBilling default: expected 1, got %g", vector[6])
		}
		if vector[8] != 1 {
			t.Errorf("InternetService default: expected 1, got %g", vector[8])
		}
	})

	t.Run("NilAttributes", func(t *testing.T) {
		_, err := enc.Encode(nil)
		var invalid *InvalidAttributeError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidAttributeError, got %v", err)
		}
	})

	t.Run("MissingMandatoryFields", func(t *testing.T) {
		cases := []struct {
			name  string
			strip func(*domain.CustomerAttributes)
			field string
		}{
			{"Tenure", func(a *domain.CustomerAttributes) { a.Tenure = nil }, "tenure"},
			{"Contract", func(a *domain.CustomerAttributes) { a.Contract = nil }, "Contract"},
			{"PaymentMethod", func(a *domain.CustomerAttributes) { a.PaymentMethod = nil }, "PaymentMethod"},
			{"MonthlyCharges", func(a *domain.CustomerAttributes) { a.MonthlyCharges = nil }, "MonthlyCharges"},
			{"TotalCharges", func(a *domain.CustomerAttributes) { a.TotalCharges = nil }, "TotalCharges"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				attrs := fullAttributes()
				tc.strip(attrs)

				_, err := enc.Encode(attrs)
				var invalid *InvalidAttributeError
				if !errors.As(err, &invalid) {
					t.Fatalf("expected InvalidAttributeError, got %v", err)
				}
				if invalid.Field != tc.field {
					t.Errorf("expected field %q, got %q", tc.field, invalid.Field)
				}
			})
		}
	})

	t.Run("UnknownCategorical", func(t *testing.T) {
		attrs := fullAttributes()
		attrs.Contract = domain.StringPtr("Biennial")

		_, err := enc.Encode(attrs)
		var invalid *InvalidAttributeError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidAttributeError, got %v", err)
		}
		if invalid.Field != "Contract" || invalid.Value != "Biennial" {
			t.Errorf("unexpected error detail: %+v", invalid)
		}
		// Error lists the accepted values, sorted.
		if !strings.Contains(invalid.Reason, "Month-to-month, One year, Two year") {
			t.Errorf("expected sorted accepted values in reason, got %q", invalid.Reason)
		}
	})

	t.Run("PresentInvalidNotDefaulted", func(t *testing.T) {
		// A present but invalid optional value is an error, never replaced
		// by the default.
		attrs := fullAttributes()
		attrs.Gender = domain.StringPtr("Unknown")

		_, err := enc.Encode(attrs)
		var invalid *InvalidAttributeError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidAttributeError, got %v", err)
		}
		if invalid.Field != "gender" {
			t.Errorf("expected field gender, got %q", invalid.Field)
		}
	})

	t.Run("NegativeNumericFields", func(t *testing.T) {
		attrs := fullAttributes()
		attrs.Tenure = domain.IntPtr(-1)
		if _, err := enc.Encode(attrs); err == nil {
			t.Error("expected error for negative tenure")
		}

		attrs = fullAttributes()
		attrs.MonthlyCharges = domain.FloatPtr(-5.0)
		if _, err := enc.Encode(attrs); err == nil {
			t.Error("expected error for negative MonthlyCharges")
		}
	})

	t.Run("SeniorCitizenDomain", func(t *testing.T) {
		attrs := fullAttributes()
		attrs.SeniorCitizen = domain.IntPtr(2)

		_, err := enc.Encode(attrs)
		var invalid *InvalidAttributeError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidAttributeError, got %v", err)
		}
		if invalid.Field != "SeniorCitizen" {
			t.Errorf("expected field SeniorCitizen, got %q", invalid.Field)
		}
	})

	t.Run("ZeroTenureNewCustomer", func(t *testing.T) {
		attrs := fullAttributes()
		attrs.Tenure = domain.IntPtr(0)
		attrs.TotalCharges = domain.FloatPtr(0)

		vector, err := enc.Encode(attrs)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if vector[4] != 0 || vector[12] != 0 {
			t.Errorf("expected zero tenure and charges, got %g/%g", vector[4], vector[12])
		}
	})
}

func TestInvalidAttributeErrorMessage(t *testing.T) {
	withValue := &InvalidAttributeError{Field: "Contract", Value: "Weekly", Reason: "unknown value"}
	if !strings.Contains(withValue.Error(), `"Weekly"`) {
		t.Errorf("expected value in message, got %q", withValue.Error())
	}

	withoutValue := &InvalidAttributeError{Field: "tenure", Reason: "field is required"}
	if strings.Contains(withoutValue.Error(), "got") {
		t.Errorf("expected no value clause, got %q", withoutValue.Error())
	}
}

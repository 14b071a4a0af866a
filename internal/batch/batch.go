// Package batch runs table-driven predictions with per-row failure
// isolation.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/classifier"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/encoder"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/model"
)

// Processor drives the encoder and classifier over a table of customer
// rows, persists the successful results as one batch, and summarizes.
type Processor struct {
	enc        *encoder.Encoder
	cls        *classifier.Classifier
	store      domain.HistoryStore
	maxWorkers int
}

// New creates a batch processor. maxWorkers bounds row-level concurrency;
// values <= 0 fall back to 10.
func New(enc *encoder.Encoder, cls *classifier.Classifier, store domain.HistoryStore, maxWorkers int) *Processor {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &Processor{
		enc:        enc,
		cls:        cls,
		store:      store,
		maxWorkers: maxWorkers,
	}
}

// rowOutcome is the tagged per-row result: exactly one of pred or failure
// is set.
type rowOutcome struct {
	pred    *domain.BatchPrediction
	attrs   *domain.CustomerAttributes
	failure *domain.RowFailure
}

// Process runs every row independently, in input order. A row that fails to
// parse or encode lands in the failure list and never aborts the batch; an
// unavailable model or a storage fault fails the whole call. All successful
// results are inserted into the history store as one atomic batch before
// the summary is returned.
func (p *Processor) Process(ctx context.Context, rows []Row) (*domain.BatchSummary, error) {
	outcomes := make([]rowOutcome, len(rows))

	var wg sync.WaitGroup
	var fatalOnce sync.Once
	var fatalErr error

	// Limit concurrency with semaphore
	sem := make(chan struct{}, p.maxWorkers)

	for i, row := range rows {
		wg.Add(1)
		go func(idx int, r Row) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			outcome, err := p.processRow(ctx, idx, r)
			if err != nil {
				fatalOnce.Do(func() { fatalErr = err })
				return
			}
			outcomes[idx] = outcome
		}(i, row)
	}

	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}

	summary := &domain.BatchSummary{
		RiskDistribution: emptyDistribution(),
	}

	var records []*domain.PredictionRecord
	var probSum float64

	for _, o := range outcomes {
		if o.failure != nil {
			summary.Failures = append(summary.Failures, *o.failure)
			continue
		}

		summary.Predictions = append(summary.Predictions, *o.pred)
		summary.RiskDistribution[o.pred.RiskLevel]++
		probSum += o.pred.Probability
		if o.pred.WillChurn {
			summary.PredictedChurners++
		}

		records = append(records, &domain.PredictionRecord{
			CustomerID:     o.pred.CustomerID,
			CustomerData:   *o.attrs,
			Probability:    o.pred.Probability,
			RiskLevel:      o.pred.RiskLevel,
			WillChurn:      o.pred.WillChurn,
			PredictionType: domain.PredictionTypeBatch,
		})
	}

	summary.TotalCustomers = len(summary.Predictions)
	if summary.TotalCustomers > 0 {
		summary.ChurnRate = round2(float64(summary.PredictedChurners) / float64(summary.TotalCustomers) * 100)
		summary.AverageChurnProbability = round2(probSum / float64(summary.TotalCustomers))
	}

	// The store and the returned summary must never disagree: persist
	// before responding, and fail the whole call if persistence fails.
	if len(records) > 0 {
		if _, err := p.store.Insert(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to record batch: %w", err)
		}
	}

	return summary, nil
}

// processRow parses, encodes, and classifies one row. Parse and encode
// failures are per-row outcomes; only call-level faults return an error.
func (p *Processor) processRow(ctx context.Context, idx int, row Row) (rowOutcome, error) {
	customerID := row["customerID"]
	if customerID == "" {
		customerID = row["customer_id"]
	}
	if customerID == "" {
		customerID = fmt.Sprintf("row-%d", idx)
	}

	attrs, err := parseAttributes(row)
	if err == nil {
		var vector domain.FeatureVector
		vector, err = p.enc.Encode(attrs)
		if err == nil {
			var result *domain.PredictionResult
			result, err = p.cls.Classify(ctx, vector)
			if err == nil {
				return rowOutcome{
					pred: &domain.BatchPrediction{
						CustomerID:       customerID,
						PredictionResult: *result,
					},
					attrs: attrs,
				}, nil
			}
		}
	}

	if errors.Is(err, model.ErrUnavailable) {
		return rowOutcome{}, err
	}

	return rowOutcome{
		failure: &domain.RowFailure{
			Index:      idx,
			CustomerID: customerID,
			Reason:     err.Error(),
		},
	}, nil
}

// parseAttributes maps a CSV row to customer attributes. Absent columns and
// empty cells stay nil so the encoder applies its defaults; malformed
// numerics fail here with the offending field named.
func parseAttributes(row Row) (*domain.CustomerAttributes, error) {
	attrs := &domain.CustomerAttributes{
		Gender:           optString(row, "gender"),
		Partner:          optString(row, "Partner"),
		Dependents:       optString(row, "Dependents"),
		Contract:         optString(row, "Contract"),
		PaperlessBilling: optString(row, "PaperlessBilling"),
		PaymentMethod:    optString(row, "PaymentMethod"),
		InternetService:  optString(row, "InternetService"),
		OnlineSecurity:   optString(row, "OnlineSecurity"),
		TechSupport:      optString(row, "TechSupport"),
	}

	var err error
	if attrs.SeniorCitizen, err = optInt(row, "SeniorCitizen"); err != nil {
		return nil, err
	}
	if attrs.Tenure, err = optInt(row, "tenure"); err != nil {
		return nil, err
	}
	if attrs.MonthlyCharges, err = optFloat(row, "MonthlyCharges"); err != nil {
		return nil, err
	}
	if attrs.TotalCharges, err = optFloat(row, "TotalCharges"); err != nil {
		return nil, err
	}

	return attrs, nil
}

func optString(row Row, field string) *string {
	if v, ok := row[field]; ok && v != "" {
		return &v
	}
	return nil
}

func optInt(row Row, field string) (*int, error) {
	v, ok := row[field]
	if !ok || v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, &encoder.InvalidAttributeError{Field: field, Value: v, Reason: "not a whole number"}
	}
	return &n, nil
}

func optFloat(row Row, field string) (*float64, error) {
	v, ok := row[field]
	if !ok || v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, &encoder.InvalidAttributeError{Field: field, Value: v, Reason: "not a number"}
	}
	return &f, nil
}

func emptyDistribution() map[string]int {
	dist := make(map[string]int, len(domain.RiskLevels))
	for _, level := range domain.RiskLevels {
		dist[level] = 0
	}
	return dist
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

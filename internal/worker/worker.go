// Package worker provides async prediction processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/alerts"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/classifier"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/encoder"
)

// Worker consumes prediction requests from the EventBus, runs them through
// the encode/classify/persist pipeline, and publishes the outcomes.
type Worker struct {
	bus    domain.EventBus
	store  domain.HistoryStore
	enc    *encoder.Encoder
	cls    *classifier.Classifier
	engine *alerts.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker. engine may be nil to disable alerts.
func NewWorker(bus domain.EventBus, store domain.HistoryStore, enc *encoder.Encoder, cls *classifier.Classifier, engine *alerts.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		store:  store,
		enc:    enc,
		cls:    cls,
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the prediction request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicPredictRequest, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicPredictRequest,
	)

	return nil
}

// PredictRequestMessage is the message payload for an async prediction.
type PredictRequestMessage struct {
	CustomerID string                     `json:"customerId,omitempty"`
	TraceID    string                     `json:"traceId,omitempty"`
	Customer   *domain.CustomerAttributes `json:"customer"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()
	return w.processPrediction(ctx, msg)
}

// processPrediction runs one request through the prediction pipeline.
func (w *Worker) processPrediction(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req PredictRequestMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse prediction request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.Customer == nil {
		slog.Error("prediction request missing customer attributes",
			"message_id", msg.ID,
		)
		return nil
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing prediction request",
		"customer_id", req.CustomerID,
		"trace_id", traceID,
	)

	// 1. Encode
	vector, err := w.enc.Encode(req.Customer)
	if err != nil {
		slog.Error("encoding failed",
			"customer_id", req.CustomerID,
			"trace_id", traceID,
			"error", err,
		)
		return err
	}

	// 2. Classify
	result, err := w.cls.Classify(ctx, vector)
	if err != nil {
		slog.Error("classification failed",
			"customer_id", req.CustomerID,
			"trace_id", traceID,
			"error", err,
		)
		return err
	}

	// 3. Persist. A failed insert aborts the pipeline: nothing is published
	// and no alerts fire for a prediction that was never recorded.
	record := &domain.PredictionRecord{
		CustomerID:     req.CustomerID,
		CustomerData:   *req.Customer,
		Probability:    result.Probability,
		RiskLevel:      result.RiskLevel,
		WillChurn:      result.WillChurn,
		PredictionType: domain.PredictionTypeSingle,
	}

	if w.store != nil {
		if _, err := w.store.Insert(ctx, []*domain.PredictionRecord{record}); err != nil {
			slog.Error("failed to persist prediction",
				"customer_id", req.CustomerID,
				"trace_id", traceID,
				"error", err,
			)
			return err
		}
	}

	// 4. Publish result
	recordPayload, _ := json.Marshal(record)
	if err := w.bus.Publish(ctx, domain.TopicPredictionRecorded, recordPayload); err != nil {
		slog.Error("failed to publish prediction",
			"customer_id", req.CustomerID,
			"error", err,
		)
	}

	// 5. Evaluate alert rules
	if w.engine != nil && w.engine.RulesCount() > 0 {
		triggered, err := w.engine.EvaluateAll(ctx, &alerts.EvaluateInput{
			CustomerID:     req.CustomerID,
			PredictionID:   record.ID,
			Attributes:     req.Customer,
			Result:         result,
			PredictionType: domain.PredictionTypeSingle,
		})
		if err != nil {
			slog.Error("alert evaluation failed",
				"customer_id", req.CustomerID,
				"error", err,
			)
		}
		for _, alert := range triggered {
			payload, _ := json.Marshal(alert)
			if err := w.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
				slog.Error("failed to publish alert",
					"rule_id", alert.RuleID,
					"error", err,
				)
			}
		}
	}

	slog.Info("prediction processed",
		"customer_id", req.CustomerID,
		"risk_level", result.RiskLevel,
		"churn_probability", result.Probability,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	// Wait for in-flight predictions to drain.
	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

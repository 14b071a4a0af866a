package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/alerts"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/bus"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/classifier"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/encoder"
)

// stubScorer returns a fixed fraction for every vector.
type stubScorer struct {
	score float64
}

func (s *stubScorer) Score(vector domain.FeatureVector) (float64, error) {
	return s.score, nil
}

// memStore is an in-memory HistoryStore for tests. A non-nil failure is
// returned from every Insert.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	records []*domain.PredictionRecord
	failure error
}

func newMemStore() *memStore {
	return &memStore{nextID: 1}
}

func (s *memStore) Insert(ctx context.Context, records []*domain.PredictionRecord) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure != nil {
		return nil, s.failure
	}

	ids := make([]int64, len(records))
	for i, rec := range records {
		rec.ID = s.nextID
		rec.CreatedAt = time.Now().UTC()
		s.nextID++
		ids[i] = rec.ID
		s.records = append(s.records, rec)
	}
	return ids, nil
}

func (s *memStore) List(ctx context.Context, limit int) ([]*domain.PredictionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.PredictionRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *memStore) Delete(ctx context.Context, id int64) error      { return nil }
func (s *memStore) DeleteAll(ctx context.Context) (int64, error)    { return 0, nil }
func (s *memStore) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	return &domain.HistoryStats{}, nil
}
func (s *memStore) Ping(ctx context.Context) error { return nil }
func (s *memStore) Close() error                   { return nil }

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// blockingScorer holds every Score call until released.
type blockingScorer struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingScorer) Score(vector domain.FeatureVector) (float64, error) {
	s.started <- struct{}{}
	<-s.release
	return 0.3, nil
}

func testCustomer() *domain.CustomerAttributes {
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

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	enc := encoder.New(encoder.TelcoV1())

	t.Run("StartAndStop", func(t *testing.T) {
		cls := classifier.New(&stubScorer{score: 0.3}, nil)
		w := NewWorker(eventBus, newMemStore(), enc, cls, nil)

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessPrediction", func(t *testing.T) {
		store := newMemStore()
		cls := classifier.New(&stubScorer{score: 0.82}, nil)
		w := NewWorker(eventBus, store, enc, cls, nil)

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		// Track recorded predictions
		var recorded atomic.Bool
		var recordedPayload []byte

		eventBus.Subscribe(context.Background(), domain.TopicPredictionRecorded, func(ctx context.Context, msg *domain.Message) error {
			recordedPayload = msg.Payload
			recorded.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		req := PredictRequestMessage{
			CustomerID: "cust-001",
			TraceID:    "trace-001",
			Customer:   testCustomer(),
		}

		payload, _ := json.Marshal(req)
		if err := eventBus.Publish(context.Background(), domain.TopicPredictRequest, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !recorded.Load() {
			t.Fatal("expected prediction to be published")
		}

		var rec domain.PredictionRecord
		if err := json.Unmarshal(recordedPayload, &rec); err != nil {
			t.Fatalf("failed to parse prediction: %v", err)
		}

		if rec.CustomerID != "cust-001" {
			t.Errorf("expected customer 'cust-001', got '%s'", rec.CustomerID)
		}
		if rec.Probability != 82.0 {
			t.Errorf("expected probability 82.0, got %.2f", rec.Probability)
		}
		if rec.RiskLevel != domain.RiskCritical {
			t.Errorf("expected Critical risk, got '%s'", rec.RiskLevel)
		}
		if !rec.WillChurn {
			t.Error("expected will_churn true")
		}

		if store.count() != 1 {
			t.Errorf("expected 1 persisted record, got %d", store.count())
		}
	})

	t.Run("AlertPublished", func(t *testing.T) {
		engine, _ := alerts.NewEngine(5)
		defer engine.Close()
		engine.LoadRule(&domain.AlertRule{
			ID:         "critical-risk",
			Name:       "Critical churn risk",
			Expression: `risk_level == "Critical"`,
			Severity:   "critical",
			Enabled:    true,
		})

		cls := classifier.New(&stubScorer{score: 0.9}, nil)
		w := NewWorker(eventBus, newMemStore(), enc, cls, engine)

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		var alertReceived atomic.Bool

		eventBus.Subscribe(context.Background(), domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			alertReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		req := PredictRequestMessage{
			CustomerID: "cust-alert",
			Customer:   testCustomer(),
		}

		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), domain.TopicPredictRequest, payload)

		time.Sleep(100 * time.Millisecond)

		if !alertReceived.Load() {
			t.Error("expected alert to be published for critical prediction")
		}
	})

	t.Run("StopWaitsForInFlight", func(t *testing.T) {
		scorer := &blockingScorer{
			started: make(chan struct{}),
			release: make(chan struct{}),
		}
		cls := classifier.New(scorer, nil)
		w := NewWorker(eventBus, newMemStore(), enc, cls, nil)

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		req := PredictRequestMessage{
			CustomerID: "cust-inflight",
			Customer:   testCustomer(),
		}
		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), domain.TopicPredictRequest, payload)

		// The prediction is now blocked mid-pipeline.
		select {
		case <-scorer.started:
		case <-time.After(time.Second):
			t.Fatal("prediction never reached the scorer")
		}

		stopped := make(chan struct{})
		go func() {
			w.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
			t.Fatal("Stop returned while a prediction was still in flight")
		case <-time.After(50 * time.Millisecond):
		}

		close(scorer.release)

		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("Stop did not return after the prediction drained")
		}
	})

	t.Run("InsertFailureAbortsPipeline", func(t *testing.T) {
		store := newMemStore()
		store.failure = errors.New("disk full")

		engine, _ := alerts.NewEngine(5)
		defer engine.Close()
		engine.LoadRule(&domain.AlertRule{
			ID:         "critical-risk",
			Name:       "Critical churn risk",
			Expression: `risk_level == "Critical"`,
			Severity:   "critical",
			Enabled:    true,
		})

		cls := classifier.New(&stubScorer{score: 0.9}, nil)
		w := NewWorker(eventBus, store, enc, cls, engine)

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		var recorded atomic.Bool
		var alerted atomic.Bool

		eventBus.Subscribe(context.Background(), domain.TopicPredictionRecorded, func(ctx context.Context, msg *domain.Message) error {
			recorded.Store(true)
			return nil
		})
		eventBus.Subscribe(context.Background(), domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			alerted.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		req := PredictRequestMessage{
			CustomerID: "cust-unpersisted",
			Customer:   testCustomer(),
		}

		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), domain.TopicPredictRequest, payload)

		time.Sleep(100 * time.Millisecond)

		// A prediction that was never persisted must not be announced.
		if recorded.Load() {
			t.Error("expected no recorded event when persistence fails")
		}
		if alerted.Load() {
			t.Error("expected no alert evaluation when persistence fails")
		}
		if store.count() != 0 {
			t.Errorf("expected no persisted records, got %d", store.count())
		}
	})

	t.Run("InvalidAttributesSkipped", func(t *testing.T) {
		store := newMemStore()
		cls := classifier.New(&stubScorer{score: 0.5}, nil)
		w := NewWorker(eventBus, store, enc, cls, nil)

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		// Missing mandatory fields, encoding must fail
		req := PredictRequestMessage{
			CustomerID: "cust-bad",
			Customer:   &domain.CustomerAttributes{},
		}

		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), domain.TopicPredictRequest, payload)

		time.Sleep(100 * time.Millisecond)

		if store.count() != 0 {
			t.Errorf("expected no persisted records, got %d", store.count())
		}
	})
}

func TestPredictRequestMessageParsing(t *testing.T) {
	msg := PredictRequestMessage{
		CustomerID: "cust-123",
		TraceID:    "trace-456",
		Customer:   testCustomer(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed PredictRequestMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.CustomerID != msg.CustomerID {
		t.Errorf("expected CustomerID '%s', got '%s'", msg.CustomerID, parsed.CustomerID)
	}
	if parsed.Customer == nil || *parsed.Customer.Tenure != 2 {
		t.Error("expected customer attributes to round-trip")
	}
}

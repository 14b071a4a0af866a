package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
)

func newTestStore(t *testing.T) domain.HistoryStore {
	t.Helper()

	store, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "predictions.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func record(customerID string, probability float64, riskLevel string, willChurn bool) *domain.PredictionRecord {
	return &domain.PredictionRecord{
		CustomerID: customerID,
		CustomerData: domain.CustomerAttributes{
			Tenure:         domain.IntPtr(2),
			Contract:       domain.StringPtr("Month-to-month"),
			PaymentMethod:  domain.StringPtr("Electronic check"),
			MonthlyCharges: domain.FloatPtr(95.5),
			TotalCharges:   domain.FloatPtr(191.0),
		},
		Probability:    probability,
		RiskLevel:      riskLevel,
		WillChurn:      willChurn,
		PredictionType: domain.PredictionTypeSingle,
	}
}

func TestNew(t *testing.T) {
	t.Run("SQLite", func(t *testing.T) {
		store := newTestStore(t)
		if err := store.Ping(context.Background()); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("UnsupportedDriver", func(t *testing.T) {
		_, err := New(domain.RepositoryConfig{Driver: "oracle"})
		if err == nil {
			t.Fatal("expected error for unsupported driver")
		}
	})
}

func TestInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("SingleRecord", func(t *testing.T) {
		store := newTestStore(t)

		rec := record("cust-1", 82.0, domain.RiskCritical, true)
		ids, err := store.Insert(ctx, []*domain.PredictionRecord{rec})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		if len(ids) != 1 {
			t.Fatalf("expected 1 id, got %d", len(ids))
		}
		if rec.ID != ids[0] {
			t.Errorf("record ID not filled in: %d vs %d", rec.ID, ids[0])
		}
		if rec.CreatedAt.IsZero() {
			t.Error("CreatedAt not filled in")
		}
	})

	t.Run("IdsStrictlyIncreasing", func(t *testing.T) {
		store := newTestStore(t)

		var prev int64
		for i := 0; i < 5; i++ {
			ids, err := store.Insert(ctx, []*domain.PredictionRecord{
				record("cust", 30.0, domain.RiskMedium, false),
			})
			if err != nil {
				t.Fatalf("Insert failed: %v", err)
			}
			if ids[0] <= prev {
				t.Fatalf("ids not strictly increasing: %d after %d", ids[0], prev)
			}
			prev = ids[0]
		}
	})

	t.Run("BatchAtomic", func(t *testing.T) {
		store := newTestStore(t)

		batch := []*domain.PredictionRecord{
			record("cust-1", 10.0, domain.RiskLow, false),
			record("cust-2", 60.0, domain.RiskHigh, true),
			record("cust-3", 90.0, domain.RiskCritical, true),
		}
		ids, err := store.Insert(ctx, batch)
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if len(ids) != 3 {
			t.Fatalf("expected 3 ids, got %d", len(ids))
		}
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				t.Errorf("batch ids not increasing: %v", ids)
			}
		}
	})

	t.Run("EmptyBatchRejected", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.Insert(ctx, nil)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("MostRecentFirst", func(t *testing.T) {
		store := newTestStore(t)

		for _, id := range []string{"first", "second", "third"} {
			if _, err := store.Insert(ctx, []*domain.PredictionRecord{
				record(id, 50.0, domain.RiskHigh, true),
			}); err != nil {
				t.Fatalf("Insert failed: %v", err)
			}
		}

		records, err := store.List(ctx, 10)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}
		if records[0].CustomerID != "third" || records[2].CustomerID != "first" {
			t.Errorf("expected most recent first, got %s..%s",
				records[0].CustomerID, records[2].CustomerID)
		}
	})

	t.Run("LimitApplied", func(t *testing.T) {
		store := newTestStore(t)

		for i := 0; i < 5; i++ {
			store.Insert(ctx, []*domain.PredictionRecord{
				record("cust", 50.0, domain.RiskHigh, true),
			})
		}

		records, err := store.List(ctx, 2)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}
	})

	t.Run("CustomerDataRoundTrips", func(t *testing.T) {
		store := newTestStore(t)

		store.Insert(ctx, []*domain.PredictionRecord{
			record("cust-1", 82.0, domain.RiskCritical, true),
		})

		records, err := store.List(ctx, 1)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}

		data := records[0].CustomerData
		if data.Tenure == nil || *data.Tenure != 2 {
			t.Errorf("tenure did not round trip: %+v", data.Tenure)
		}
		if data.Contract == nil || *data.Contract != "Month-to-month" {
			t.Errorf("contract did not round trip: %+v", data.Contract)
		}
		if !records[0].WillChurn {
			t.Error("will_churn did not round trip")
		}
	})

	t.Run("EmptyLog", func(t *testing.T) {
		store := newTestStore(t)

		records, err := store.List(ctx, 10)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
	})

	t.Run("CorruptCustomerDataSurfaces", func(t *testing.T) {
		store := newTestStore(t)

		ids, err := store.Insert(ctx, []*domain.PredictionRecord{
			record("cust-1", 82.0, domain.RiskCritical, true),
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		raw := store.(*SQLStore)
		if _, err := raw.db.Exec(raw.rebind(`UPDATE predictions SET customer_data = ? WHERE id = ?`), "not-json", ids[0]); err != nil {
			t.Fatalf("failed to corrupt record: %v", err)
		}

		_, err = store.List(ctx, 10)
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("expected ErrPersistence for corrupt customer data, got %v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("ExistingRecord", func(t *testing.T) {
		store := newTestStore(t)

		ids, _ := store.Insert(ctx, []*domain.PredictionRecord{
			record("cust-1", 50.0, domain.RiskHigh, true),
		})

		if err := store.Delete(ctx, ids[0]); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		records, _ := store.List(ctx, 10)
		if len(records) != 0 {
			t.Errorf("expected record gone, got %d", len(records))
		}
	})

	t.Run("MissingRecord", func(t *testing.T) {
		store := newTestStore(t)

		err := store.Delete(ctx, 9999)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 4; i++ {
		store.Insert(ctx, []*domain.PredictionRecord{
			record("cust", 50.0, domain.RiskHigh, true),
		})
	}

	count, err := store.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 deleted, got %d", count)
	}

	count, err = store.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 deleted on empty log, got %d", count)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyLog", func(t *testing.T) {
		store := newTestStore(t)

		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.TotalPredictions != 0 {
			t.Errorf("expected 0 predictions, got %d", stats.TotalPredictions)
		}
		if stats.OverallChurnRate != 0 || stats.AverageProbability != 0 {
			t.Errorf("expected zeroed rates, got %+v", stats)
		}
		if len(stats.RecentTrend) != 0 {
			t.Errorf("expected empty trend, got %d buckets", len(stats.RecentTrend))
		}
	})

	t.Run("Aggregates", func(t *testing.T) {
		store := newTestStore(t)

		store.Insert(ctx, []*domain.PredictionRecord{
			record("a", 90.0, domain.RiskCritical, true),
			record("b", 60.0, domain.RiskHigh, true),
			record("c", 30.0, domain.RiskMedium, false),
			record("d", 10.0, domain.RiskLow, false),
		})

		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}

		if stats.TotalPredictions != 4 {
			t.Errorf("expected 4 predictions, got %d", stats.TotalPredictions)
		}
		if stats.OverallChurnRate != 50.0 {
			t.Errorf("expected churn rate 50.0, got %f", stats.OverallChurnRate)
		}
		// (90 + 60 + 30 + 10) / 4 = 47.5
		if stats.AverageProbability != 47.5 {
			t.Errorf("expected average 47.5, got %f", stats.AverageProbability)
		}

		for _, level := range []string{domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskCritical} {
			if stats.RiskDistribution[level] != 1 {
				t.Errorf("expected 1 %s, got %d", level, stats.RiskDistribution[level])
			}
		}
	})

	t.Run("TrendOmitsEmptyDays", func(t *testing.T) {
		store := newTestStore(t)

		ids, err := store.Insert(ctx, []*domain.PredictionRecord{
			record("a", 40.0, domain.RiskMedium, false),
			record("b", 60.0, domain.RiskHigh, true),
			record("c", 80.0, domain.RiskCritical, true),
			record("d", 20.0, domain.RiskLow, false),
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		// Backdate: two records three days ago, one a day ago, one today.
		// Nothing lands two days ago.
		now := time.Now().UTC()
		raw := store.(*SQLStore)
		backdate := func(id int64, at time.Time) {
			if _, err := raw.db.Exec(raw.rebind(`UPDATE predictions SET created_at = ? WHERE id = ?`), at, id); err != nil {
				t.Fatalf("failed to backdate record %d: %v", id, err)
			}
		}
		backdate(ids[0], now.Add(-72*time.Hour))
		backdate(ids[1], now.Add(-72*time.Hour))
		backdate(ids[2], now.Add(-24*time.Hour))

		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}

		// The empty day is omitted, not zero-filled.
		if len(stats.RecentTrend) != 3 {
			t.Fatalf("expected 3 trend buckets, got %d: %+v", len(stats.RecentTrend), stats.RecentTrend)
		}
		for _, bucket := range stats.RecentTrend {
			if bucket.Count == 0 {
				t.Errorf("bucket %s has zero count; empty days must be omitted", bucket.Date)
			}
		}

		// Chronological, with the expected dates.
		wantDates := []string{
			now.Add(-72 * time.Hour).Format("2006-01-02"),
			now.Add(-24 * time.Hour).Format("2006-01-02"),
			now.Format("2006-01-02"),
		}
		for i, bucket := range stats.RecentTrend {
			if bucket.Date != wantDates[i] {
				t.Errorf("bucket %d: expected date %s, got %s", i, wantDates[i], bucket.Date)
			}
		}

		first := stats.RecentTrend[0]
		if first.Count != 2 {
			t.Errorf("expected 2 predictions three days ago, got %d", first.Count)
		}
		// (40 + 60) / 2 = 50
		if first.AverageProbability != 50.0 {
			t.Errorf("expected average 50.0 three days ago, got %f", first.AverageProbability)
		}
	})

	t.Run("TrendBucketsByDay", func(t *testing.T) {
		store := newTestStore(t)

		store.Insert(ctx, []*domain.PredictionRecord{
			record("a", 40.0, domain.RiskMedium, false),
			record("b", 60.0, domain.RiskHigh, true),
		})

		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}

		// All inserts happened today, so exactly one bucket.
		if len(stats.RecentTrend) != 1 {
			t.Fatalf("expected 1 trend bucket, got %d", len(stats.RecentTrend))
		}
		bucket := stats.RecentTrend[0]
		if bucket.Count != 2 {
			t.Errorf("expected bucket count 2, got %d", bucket.Count)
		}
		if bucket.AverageProbability != 50.0 {
			t.Errorf("expected bucket average 50.0, got %f", bucket.AverageProbability)
		}
	})
}

func TestRebind(t *testing.T) {
	sqlite := &SQLStore{driver: "sqlite"}
	if got := sqlite.rebind("SELECT * FROM t WHERE a = ? AND b = ?"); got != "SELECT * FROM t WHERE a = ? AND b = ?" {
		t.Errorf("sqlite query should be untouched, got %q", got)
	}

	pg := &SQLStore{driver: "postgres"}
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got := pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// Benchmark tool for testing ChurnShield against labeled Telco churn data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/telco.csv -url http://localhost:8080
//
// This tool:
//  1. Reads Telco customer data (with Churn labels)
//  2. Sends each customer to ChurnShield for prediction
//  3. Compares the predicted will_churn flag with the actual label
//  4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// TelcoCustomer represents a row from the Telco churn dataset.
type TelcoCustomer struct {
	CustomerID       string
	Gender           string
	SeniorCitizen    int
	Partner          string
	Dependents       string
	Tenure           int
	Contract         string
	PaperlessBilling string
	PaymentMethod    string
	InternetService  string
	OnlineSecurity   string
	TechSupport      string
	MonthlyCharges   float64
	TotalCharges     float64
	Churned          bool
}

// PredictResponse is the ChurnShield API response format.
type PredictResponse struct {
	ID          int64   `json:"id"`
	Probability float64 `json:"churn_probability"`
	RiskLevel   string  `json:"risk_level"`
	WillChurn   bool    `json:"will_churn"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Churner predicted as churner
	FalsePositives int64 // Stayer predicted as churner
	TrueNegatives  int64 // Stayer predicted as stayer
	FalseNegatives int64 // Churner predicted as stayer (missed churn!)

	TotalProcessed int64
	TotalChurners  int64
	TotalStayers   int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to Telco churn CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "ChurnShield base URL")
	limit := flag.Int("limit", 10000, "Maximum customers to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	churnOnly := flag.Bool("churn-only", false, "Only test customers who churned")
	verbose := flag.Bool("verbose", false, "Print each prediction result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/telco.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        CHURNSHIELD BENCHMARK - Telco Churn Prediction         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:        %s\n", *csvPath)
	fmt.Printf("ChurnShield URL: %s\n", *baseURL)
	fmt.Printf("Workers:         %d\n", *workers)
	fmt.Printf("Limit:           %d\n", *limit)
	fmt.Printf("Churn Only:      %v\n", *churnOnly)
	fmt.Println()

	// Check ChurnShield is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: ChurnShield not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure ChurnShield is running:")
		fmt.Println("  go run cmd/churnshield/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ ChurnShield is healthy")

	// Read Telco data
	fmt.Printf("\nReading Telco data from %s...\n", *csvPath)
	customers, err := readTelcoCSV(*csvPath, *limit, *churnOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d customers\n", len(customers))

	// Count churners vs stayers
	churnCount := 0
	for _, c := range customers {
		if c.Churned {
			churnCount++
		}
	}
	fmt.Printf("  - Churned: %d (%.2f%%)\n", churnCount, 100*float64(churnCount)/float64(len(customers)))
	fmt.Printf("  - Stayed:  %d (%.2f%%)\n", len(customers)-churnCount, 100*float64(len(customers)-churnCount)/float64(len(customers)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(customers, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readTelcoCSV(path string, limit int, churnOnly bool) ([]TelcoCustomer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	col := func(record []string, name string) string {
		idx, ok := colIndex[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var customers []TelcoCustomer

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		churned := col(record, "churn") == "Yes"

		if churnOnly && !churned {
			continue
		}

		senior, _ := strconv.Atoi(col(record, "seniorcitizen"))
		tenure, _ := strconv.Atoi(col(record, "tenure"))
		monthly, _ := strconv.ParseFloat(col(record, "monthlycharges"), 64)
		total, _ := strconv.ParseFloat(col(record, "totalcharges"), 64)

		customers = append(customers, TelcoCustomer{
			CustomerID:       col(record, "customerid"),
			Gender:           col(record, "gender"),
			SeniorCitizen:    senior,
			Partner:          col(record, "partner"),
			Dependents:       col(record, "dependents"),
			Tenure:           tenure,
			Contract:         col(record, "contract"),
			PaperlessBilling: col(record, "paperlessbilling"),
			PaymentMethod:    col(record, "paymentmethod"),
			InternetService:  col(record, "internetservice"),
			OnlineSecurity:   col(record, "onlinesecurity"),
			TechSupport:      col(record, "techsupport"),
			MonthlyCharges:   monthly,
			TotalCharges:     total,
			Churned:          churned,
		})

		if limit > 0 && len(customers) >= limit {
			break
		}
	}

	return customers, nil
}

func runBenchmark(customers []TelcoCustomer, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan TelcoCustomer, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for customer := range work {
				start := time.Now()
				result, err := predictCustomer(client, baseURL, customer)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", customer.CustomerID, err)
					}
					continue
				}

				// Track actual labels
				if customer.Churned {
					atomic.AddInt64(&metrics.TotalChurners, 1)
				} else {
					atomic.AddInt64(&metrics.TotalStayers, 1)
				}

				// Calculate confusion matrix
				predicted := result.WillChurn
				actual := customer.Churned

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					fmt.Printf("%s %-12s | Tenure: %3d | Contract: %-14s | Churned: %-5v | Predicted: %6.2f%% %-8s\n",
						status,
						customer.CustomerID,
						customer.Tenure,
						customer.Contract,
						customer.Churned,
						result.Probability,
						result.RiskLevel,
					)
				}
			}
		}()
	}

	// Send work
	for _, customer := range customers {
		work <- customer
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func predictCustomer(client *http.Client, baseURL string, customer TelcoCustomer) (*PredictResponse, error) {
	// Build request matching ChurnShield's expected format
	req := map[string]any{
		"customer_id":      customer.CustomerID,
		"gender":           customer.Gender,
		"SeniorCitizen":    customer.SeniorCitizen,
		"Partner":          customer.Partner,
		"Dependents":       customer.Dependents,
		"tenure":           customer.Tenure,
		"Contract":         customer.Contract,
		"PaperlessBilling": customer.PaperlessBilling,
		"PaymentMethod":    customer.PaymentMethod,
		"InternetService":  customer.InternetService,
		"OnlineSecurity":   customer.OnlineSecurity,
		"TechSupport":      customer.TechSupport,
		"MonthlyCharges":   customer.MonthlyCharges,
		"TotalCharges":     customer.TotalCharges,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Churners:   %d\n", m.TotalChurners)
	fmt.Printf("   Total Stayers:    %d\n", m.TotalStayers)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   Churn       Stay")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  C  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           S  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 PREDICTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of predicted churners, how many actually left)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of actual churners, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalChurners > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalChurners) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalChurners) * 100
		fmt.Printf("   Churn Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalChurners, detectionRate)
		fmt.Printf("   Churn Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalChurners, missRate)
	}
	if m.TotalStayers > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalStayers) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalStayers, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f predictions/sec\n", rps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most churners")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some churners")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant churn being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most churn is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - churn calls are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}

// Package alerts provides the CEL-Go based alert rule engine.
//
// Rules are boolean CEL expressions evaluated against completed
// predictions. A rule that evaluates to true produces an Alert.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
)

// Engine is the CEL-based alert rule engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.AlertRule
	Program cel.Program
}

// NewEngine creates a new alert rule engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment with prediction variables
	env, err := cel.NewEnv(
		cel.Variable("customer", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("probability", cel.DoubleType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("will_churn", cel.BoolType),
		cel.Variable("prediction_type", cel.StringType),
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("tenure", cel.IntType),
		cel.Variable("contract", cel.StringType),
		cel.Variable("monthly_charges", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.AlertRule) error {
	if rule == nil {
		return fmt.Errorf("alert rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.AlertRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(rules []*domain.AlertRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
func (e *Engine) ReloadRules(rules []*domain.AlertRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// EvaluateInput holds the prediction data for rule evaluation.
type EvaluateInput struct {
	CustomerID     string
	PredictionID   int64
	Attributes     *domain.CustomerAttributes
	Result         *domain.PredictionResult
	PredictionType string
}

// EvaluateAll evaluates all loaded rules in parallel and returns the
// alerts for rules that triggered.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]*domain.Alert, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	activation := e.activation(input)

	// Parallel evaluation using worker pool pattern
	triggered := make([]*domain.Alert, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			out, _, err := r.Program.Eval(activation)
			if err != nil {
				return
			}

			if fired, ok := out.(types.Bool); ok && bool(fired) {
				triggered[idx] = &domain.Alert{
					RuleID:         r.Rule.ID,
					RuleName:       r.Rule.Name,
					Severity:       r.Rule.Severity,
					CustomerID:     input.CustomerID,
					PredictionID:   input.PredictionID,
					Probability:    input.Result.Probability,
					RiskLevel:      input.Result.RiskLevel,
					PredictionType: input.PredictionType,
					Timestamp:      time.Now().UTC(),
				}
			}
		}(i, rule)
	}

	wg.Wait()

	alerts := make([]*domain.Alert, 0, len(triggered))
	for _, a := range triggered {
		if a != nil {
			alerts = append(alerts, a)
		}
	}

	return alerts, nil
}

// activation builds the CEL variable bindings for a prediction.
func (e *Engine) activation(input *EvaluateInput) map[string]any {
	tenure := 0
	contract := ""
	monthlyCharges := 0.0
	customer := map[string]any{}

	if attrs := input.Attributes; attrs != nil {
		if attrs.Tenure != nil {
			tenure = *attrs.Tenure
			customer["tenure"] = *attrs.Tenure
		}
		if attrs.Contract != nil {
			contract = *attrs.Contract
			customer["contract"] = *attrs.Contract
		}
		if attrs.MonthlyCharges != nil {
			monthlyCharges = *attrs.MonthlyCharges
			customer["monthly_charges"] = *attrs.MonthlyCharges
		}
		if attrs.Gender != nil {
			customer["gender"] = *attrs.Gender
		}
		if attrs.PaymentMethod != nil {
			customer["payment_method"] = *attrs.PaymentMethod
		}
		if attrs.InternetService != nil {
			customer["internet_service"] = *attrs.InternetService
		}
	}

	return map[string]any{
		"customer":        customer,
		"probability":     input.Result.Probability,
		"risk_level":      input.Result.RiskLevel,
		"will_churn":      input.Result.WillChurn,
		"prediction_type": input.PredictionType,
		"customer_id":     input.CustomerID,
		"tenure":          tenure,
		"contract":        contract,
		"monthly_charges": monthlyCharges,
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rules.
func (e *Engine) GetLoadedRules() []*domain.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.AlertRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Rule)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.AlertRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}

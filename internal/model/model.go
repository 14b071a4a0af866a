// Package model loads and evaluates the pretrained churn scoring artifact.
//
// The artifact is a gradient-boosted tree ensemble exported to JSON by the
// training pipeline, together with its training metrics and feature
// importance table. This service treats it as an opaque scoring function;
// training and importance computation happen elsewhere.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/neha-iitjdh/ChurnShield-AI/internal/domain"
	"github.com/neha-iitjdh/ChurnShield-AI/internal/encoder"
)

// ErrUnavailable is returned by inference when no model is loaded.
var ErrUnavailable = errors.New("model not loaded")

// Scorer estimates churn probability for a feature vector.
// Implementations must be safe for unlimited concurrent callers.
type Scorer interface {
	// Score returns the raw churn probability, a fraction in [0,1].
	Score(vector domain.FeatureVector) (float64, error)
}

// Node is one decision node in a tree. Feature < 0 marks a leaf; Value is
// the leaf weight in logit space.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is one boosting round. Evaluation starts at Nodes[0] and descends
// left when the feature value is below the threshold.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// artifact is the on-disk JSON layout.
type artifact struct {
	Version           string              `json:"version"`
	EncodingVersion   string              `json:"encoding_version"`
	FeatureNames      []string            `json:"feature_names"`
	BaseScore         float64             `json:"base_score"`
	Trees             []Tree              `json:"trees"`
	Metrics           domain.ModelMetrics `json:"metrics"`
	FeatureImportance map[string]float64  `json:"feature_importance"`
}

// Ensemble is a loaded scoring artifact. Read-only after Load.
type Ensemble struct {
	version           string
	featureNames      []string
	baseScore         float64
	trees             []Tree
	metrics           domain.ModelMetrics
	featureImportance map[string]float64
}

// Load reads an artifact from disk and verifies it against the encoding the
// feature encoder uses. A version mismatch means the encoder would feed the
// model differently-coded features than it was trained on, so Load refuses.
func Load(path string, enc *encoder.Encoding) (*Ensemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}

	if a.EncodingVersion != enc.Version {
		return nil, fmt.Errorf("model trained against encoding %q, encoder uses %q", a.EncodingVersion, enc.Version)
	}
	if len(a.FeatureNames) != len(enc.FeatureOrder) {
		return nil, fmt.Errorf("model expects %d features, encoder produces %d", len(a.FeatureNames), len(enc.FeatureOrder))
	}
	for i, name := range a.FeatureNames {
		if name != enc.FeatureOrder[i] {
			return nil, fmt.Errorf("feature order mismatch at index %d: model %q, encoder %q", i, name, enc.FeatureOrder[i])
		}
	}
	if len(a.Trees) == 0 {
		return nil, fmt.Errorf("model artifact contains no trees")
	}
	for ti, tree := range a.Trees {
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range tree.Nodes {
			if n.Feature >= len(a.FeatureNames) {
				return nil, fmt.Errorf("tree %d node %d references feature %d out of range", ti, ni, n.Feature)
			}
			if n.Feature >= 0 && (n.Left < 0 || n.Left >= len(tree.Nodes) || n.Right < 0 || n.Right >= len(tree.Nodes)) {
				return nil, fmt.Errorf("tree %d node %d has child index out of range", ti, ni)
			}
		}
	}

	return &Ensemble{
		version:           a.Version,
		featureNames:      a.FeatureNames,
		baseScore:         a.BaseScore,
		trees:             a.Trees,
		metrics:           a.Metrics,
		featureImportance: a.FeatureImportance,
	}, nil
}

// Score evaluates the ensemble: sum of leaf values plus the base score,
// squashed through the logistic function. Returns a fraction in [0,1].
func (m *Ensemble) Score(vector domain.FeatureVector) (float64, error) {
	if m == nil {
		return 0, ErrUnavailable
	}
	if len(vector) != len(m.featureNames) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.featureNames), len(vector))
	}

	logit := m.baseScore
	for _, tree := range m.trees {
		idx := 0
		for {
			n := tree.Nodes[idx]
			if n.Feature < 0 {
				logit += n.Value
				break
			}
			if vector[n.Feature] < n.Threshold {
				idx = n.Left
			} else {
				idx = n.Right
			}
		}
	}

	return 1.0 / (1.0 + math.Exp(-logit)), nil
}

// Version returns the artifact version string.
func (m *Ensemble) Version() string {
	return m.version
}

// Metrics returns the training metrics embedded in the artifact.
func (m *Ensemble) Metrics() domain.ModelMetrics {
	return m.metrics
}

// FeatureImportance returns the precomputed importance table, verbatim.
func (m *Ensemble) FeatureImportance() map[string]float64 {
	return m.featureImportance
}

// Package scoring implements the black-box plaque scorers.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// Extract tags accepted by SyntaxScorer.
const (
	ExtractLabelFree = "label_free"
	ExtractLabelled  = "labelled"
	ExtractAuto      = "auto"
)

// SyntaxPanel is the feature order the SYNTAX model expects.
var SyntaxPanel = []string{"HRG", "CP", "C4B", "F13A1", "VCAN"}

// autoThreshold separates label-free log intensities from labelled ones on
// the first panel protein.
const autoThreshold = 17.35

type scaling struct {
	mean [5]float64
	std  [5]float64
}

var syntaxScaling = map[string]scaling{
	ExtractLabelFree: {
		mean: [5]float64{28.3118, 29.2769, 25.5675, 26.5596, 33.9064},
		std:  [5]float64{1.1941, 1.2242, 1.2779, 1.1350, 1.7157},
	},
	ExtractLabelled: {
		mean: [5]float64{6.5236, 6.2841, 6.4017, 6.4461, 6.2414},
		std:  [5]float64{0.7906, 0.9989, 0.9969, 0.8775, 1.0896},
	},
}

var (
	syntaxCoef      = [5]float64{0.8375609, 0.5080263, 9.0445166, 2.1418158, -2.7828411}
	syntaxIntercept = 11.9375
)

// SyntaxScorer is the frozen linear SYNTAX score model over the five-protein
// panel: score = intercept + coef·z, with z the extract-specific z-scores.
type SyntaxScorer struct{}

// NewSyntaxScorer creates a new SYNTAX scorer
func NewSyntaxScorer() *SyntaxScorer {
	return &SyntaxScorer{}
}

// Name implements ports.Scorer.
func (s *SyntaxScorer) Name() string { return "syntax" }

// ResolveExtract returns the scaling table name for extract, detecting it
// from the HRG intensity when extract is "auto" or empty.
func ResolveExtract(features []float64, extract string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(extract)) {
	case ExtractLabelFree, "label-free":
		return ExtractLabelFree, nil
	case ExtractLabelled:
		return ExtractLabelled, nil
	case ExtractAuto, "":
		if len(features) > 0 && features[0] > autoThreshold {
			return ExtractLabelFree, nil
		}
		return ExtractLabelled, nil
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown proteome extract %q for SYNTAX scoring", extract))
}

// ResolveExtract reports the scaling table a call to Score would use.
func (s *SyntaxScorer) ResolveExtract(features []float64, extract string) (string, error) {
	return ResolveExtract(features, extract)
}

// Score implements ports.Scorer.
func (s *SyntaxScorer) Score(_ context.Context, features []float64, extract string) (float64, error) {
	if len(features) != len(SyntaxPanel) {
		return 0, pkgerrors.NewFeatureVectorMismatchError(len(SyntaxPanel), len(features), "")
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, pkgerrors.NewFeatureVectorMismatchError(len(SyntaxPanel), len(features),
				fmt.Sprintf("feature %s is not a finite number", SyntaxPanel[i]))
		}
	}

	table, err := ResolveExtract(features, extract)
	if err != nil {
		return 0, err
	}
	sc := syntaxScaling[table]

	score := syntaxIntercept
	for i, v := range features {
		z := (v - sc.mean[i]) / sc.std[i]
		score += syntaxCoef[i] * z
	}
	return score, nil
}

var _ ports.Scorer = (*SyntaxScorer)(nil)

package inference

import (
	"errors"
	"fmt"
	"math"

	"github.com/khaledhikmat/ws-go/model"
)

// Softmax turns raw logits into probabilities.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	probs := make([]float32, len(logits))
	var sum float64
	for i, l := range logits {
		e := math.Exp(float64(l - maxLogit))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}

// Best picks the most probable category.
func Best(probs []float32, set model.CategorySet) (Prediction, error) {
	if len(probs) == 0 {
		return Prediction{}, errors.New("empty model output")
	}
	if len(probs) != set.Len() {
		return Prediction{}, fmt.Errorf("model produced %d scores for %d categories", len(probs), set.Len())
	}

	best := 0
	for i, p := range probs {
		if math.IsNaN(float64(p)) {
			return Prediction{}, errors.New("model produced NaN score")
		}
		if p > probs[best] {
			best = i
		}
	}

	category, _ := set.At(best)
	return Prediction{Category: category, Confidence: probs[best]}, nil
}

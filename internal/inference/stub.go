package inference

import (
	"context"
	"time"
)

// StubModelVersion identifies predictions produced without a model.
const StubModelVersion = "stub-0"

// StubClassifier stands in for a trained model. It waits for the configured
// delay and then always answers Benign with 98% confidence.
type StubClassifier struct {
	Delay time.Duration
}

// NewStubClassifier returns a stub that simulates the given processing time.
func NewStubClassifier(delay time.Duration) *StubClassifier {
	return &StubClassifier{Delay: delay}
}

func (s *StubClassifier) Classify(ctx context.Context, _ Input) (*Prediction, error) {
	return s.predict(ctx)
}

func (s *StubClassifier) ClassifyFeatures(ctx context.Context, _ string, _ Features) (*Prediction, error) {
	return s.predict(ctx)
}

func (s *StubClassifier) predict(ctx context.Context) (*Prediction, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return &Prediction{Label: LabelBenign, Confidence: 0.98, ModelVersion: StubModelVersion}, nil
}

package main

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Classification is the category assigned to an uploaded image. A
// manual override replaces the label and drops the confidence.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence,omitempty"`
	Manual     bool    `json:"manual,omitempty"`
}

// Classifier assigns a waste category to an uploaded image.
type Classifier interface {
	Classify(ctx context.Context, image ImageUpload) (Classification, error)
}

// stubClassifier stands in for a real image analysis service: after a
// simulated latency it picks a label uniformly at random with a
// confidence in [85.0, 98.0], rounded to one decimal. The image
// content is never inspected.
type stubClassifier struct {
	delay time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

func newStubClassifier(delay time.Duration) *stubClassifier {
	return &stubClassifier{
		delay: delay,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *stubClassifier) Classify(ctx context.Context, image ImageUpload) (Classification, error) {
	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Classification{}, ctx.Err()
		case <-timer.C:
		}
	}

	c.mu.Lock()
	label := wasteCategories[c.rand.Intn(len(wasteCategories))]
	confidence := math.Round((85+c.rand.Float64()*13)*10) / 10
	c.mu.Unlock()

	return Classification{Label: label, Confidence: confidence}, nil
}

package classifier

import (
	"context"
	"time"
)

// Label is the authenticity verdict for an image.
type Label string

const (
	LabelAuthentic Label = "authentic"
	LabelSynthetic Label = "synthetic"
)

// Result is the outcome of one classification request. Values are never
// mutated after they are returned.
type Result struct {
	Label          Label         `json:"label"`
	Confidence     float64       `json:"confidence"`
	Authentic      bool          `json:"authentic"`
	Indicators     []string      `json:"indicators"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// Classifier judges whether image bytes are authentic or synthetic.
type Classifier interface {
	Classify(ctx context.Context, imageBytes []byte) (*Result, error)
}

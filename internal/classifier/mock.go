package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/deepfake-detector/internal/logging"
)

// ErrEmptyImage is returned when there are no bytes to classify.
var ErrEmptyImage = errors.New("image is empty")

// Policy chooses how the mock derives its verdict.
type Policy string

const (
	// PolicyDeterministic derives the verdict from the image digest, so the
	// same bytes always get the same result.
	PolicyDeterministic Policy = "deterministic"
	// PolicyRandom draws the verdict from a seeded pseudo-random source.
	PolicyRandom Policy = "random"
)

var indicators = map[Label][]string{
	LabelAuthentic: {
		"consistent sensor noise pattern",
		"natural lighting gradients",
		"no generator upsampling artifacts",
	},
	LabelSynthetic: {
		"periodic upsampling artifacts",
		"inconsistent specular highlights",
		"irregular high-frequency texture",
	},
}

// MockClassifier simulates a discriminator network. It sleeps for Delay and
// then returns a plausible verdict without looking at the pixels.
type MockClassifier struct {
	delay  time.Duration
	policy Policy
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockClassifier constructs a mock with the given delay and policy. Unknown
// policies fall back to PolicyDeterministic.
func NewMockClassifier(delay time.Duration, policy Policy, seed uint64, logger *zap.Logger) *MockClassifier {
	if policy != PolicyRandom {
		policy = PolicyDeterministic
	}
	return &MockClassifier{
		delay:  delay,
		policy: policy,
		logger: logger.Named("mock_classifier"),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Classify waits for the simulated inference delay, or until ctx is done.
func (m *MockClassifier) Classify(ctx context.Context, imageBytes []byte) (*Result, error) {
	if len(imageBytes) == 0 {
		return nil, logging.NewOperationError("classifier.classify", "", ErrEmptyImage)
	}

	start := time.Now()
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, logging.NewOperationError("classifier.classify", "", ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, logging.NewOperationError("classifier.classify", "", err)
	}

	synthetic, fraction := m.draw(imageBytes)
	label := LabelAuthentic
	if synthetic {
		label = LabelSynthetic
	}
	notes := indicators[label]
	result := &Result{
		Label:          label,
		Confidence:     0.5 + fraction*0.49,
		Authentic:      !synthetic,
		Indicators:     append([]string(nil), notes...),
		ProcessingTime: time.Since(start),
	}

	m.logger.Debug("classified image",
		zap.String("label", string(result.Label)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("bytes", len(imageBytes)),
	)
	return result, nil
}

// draw returns the verdict and a fraction in [0, 1) used to scale confidence.
func (m *MockClassifier) draw(imageBytes []byte) (bool, float64) {
	if m.policy == PolicyRandom {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.rng.IntN(2) == 1, m.rng.Float64()
	}

	digest := sha256.Sum256(imageBytes)
	fraction := float64(binary.BigEndian.Uint64(digest[1:9])>>11) / (1 << 53)
	return digest[0]&1 == 1, fraction
}

// Package shell owns the application state of the detector page: the
// selected image handle, the processing flag and the classification result.
// Every change goes through Reduce under one lock, so concurrent HTTP
// requests observe the same sequence of states a single-threaded page would.
package shell

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/deepfake-detector/internal/classifier"
	"github.com/example/deepfake-detector/internal/imagestore"
	"github.com/example/deepfake-detector/internal/logging"
)

// ErrClosed is returned by Select after Close.
var ErrClosed = errors.New("shell is closed")

const subscriberBuffer = 32

// ImageStore is the subset of the image store used by the shell.
type ImageStore interface {
	Acquire(upload imagestore.Upload) (imagestore.Image, error)
	Get(id string) ([]byte, imagestore.Image, error)
	Release(id string) error
}

// Shell sequences select, classify, show and clear.
type Shell struct {
	classifier classifier.Classifier
	store      ImageStore
	logger     *zap.Logger

	mu          sync.Mutex
	state       State
	cancel      context.CancelFunc
	closed      bool
	stats       statsCounter
	subscribers map[int]chan State
	nextSubID   int

	runners sync.WaitGroup
}

// New constructs an idle shell.
func New(c classifier.Classifier, store ImageStore, logger *zap.Logger) *Shell {
	return &Shell{
		classifier:  c,
		store:       store,
		logger:      logger.Named("shell"),
		state:       State{Phase: PhaseIdle},
		subscribers: make(map[int]chan State),
	}
}

// State returns the current snapshot.
func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Select acquires a handle for the upload and starts classifying it. The
// previous image is released and any in-flight request is cancelled.
func (s *Shell) Select(upload imagestore.Upload) (State, error) {
	img, err := s.store.Acquire(upload)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if err := s.store.Release(img.ID); err != nil {
			s.logger.Warn("failed to release image after close", zap.Error(err))
		}
		return State{}, ErrClosed
	}
	return s.apply(Selected{Image: img}), nil
}

// Clear releases the current image and resets the shell. Clearing an idle
// shell changes nothing.
func (s *Shell) Clear() State {
	return s.Dispatch(Cleared{})
}

// Dispatch applies an event and runs the resulting effects.
func (s *Shell) Dispatch(ev Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ev)
}

// Subscribe returns a channel receiving every new snapshot in transition
// order. A subscriber that falls behind loses its oldest pending snapshots.
// The returned func unsubscribes and must be called once.
func (s *Shell) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close cancels any in-flight request, releases the current image, waits for
// classification goroutines to exit and closes all subscriptions.
func (s *Shell) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.apply(Cleared{})
	s.closed = true
	s.mu.Unlock()

	s.runners.Wait()

	s.mu.Lock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	s.mu.Unlock()
}

// apply must be called with s.mu held.
func (s *Shell) apply(ev Event) State {
	if s.closed {
		return s.state
	}
	prev := s.state
	next, effects := Reduce(prev, ev)
	if next.Equal(prev) && len(effects) == 0 {
		if settled, ok := ev.(ClassificationSettled); ok {
			s.logger.Debug("ignoring stale classification", zap.Uint64("generation", settled.Generation))
		}
		return prev
	}
	s.state = next
	s.stats.record(ev, prev, next)

	for _, effect := range effects {
		switch e := effect.(type) {
		case CancelClassification:
			s.stats.cancelled++
			if s.cancel != nil {
				s.cancel()
				s.cancel = nil
			}
			s.logger.Info("cancelled classification", zap.Uint64("generation", e.Generation))
		case ReleaseImage:
			if err := s.store.Release(e.Image.ID); err != nil {
				s.logger.Error("failed to release image", zap.Error(err))
			}
		case StartClassification:
			// The bytes are taken before the runner starts so a release that
			// follows this transition cannot hide the request from the classifier.
			data, _, err := s.store.Get(e.Image.ID)
			ctx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			s.runners.Add(1)
			go s.classify(ctx, e.Generation, e.Image, data, err)
		}
	}
	if !next.Processing && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	s.publish(next)
	return next
}

func (s *Shell) publish(st State) {
	for _, ch := range s.subscribers {
		select {
		case ch <- st:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
			s.logger.Warn("dropping state update for slow subscriber")
		}
	}
}

func (s *Shell) classify(ctx context.Context, generation uint64, img imagestore.Image, data []byte, err error) {
	defer s.runners.Done()
	opLogger := logging.WithOperation(s.logger, "shell.classify", img.ID)

	start := time.Now()
	var result *classifier.Result
	if err == nil {
		result, err = s.classifier.Classify(ctx, data)
	}
	elapsed := time.Since(start)

	if err != nil {
		err = logging.NewOperationError("shell.classify", img.ID, err)
		if ctx.Err() != nil {
			opLogger.Debug("classification abandoned", zap.Error(err))
		} else {
			opLogger.Error("classification failed", zap.Error(err))
		}
	} else {
		opLogger.Info("classification completed",
			zap.String("label", string(result.Label)),
			zap.Float64("confidence", result.Confidence),
			zap.Duration("elapsed", elapsed),
		)
	}

	s.Dispatch(ClassificationSettled{
		Generation: generation,
		Result:     result,
		Err:        err,
		Elapsed:    elapsed,
	})
}

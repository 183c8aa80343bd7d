package shell

import (
	"errors"
	"time"

	"github.com/example/deepfake-detector/internal/classifier"
	"github.com/example/deepfake-detector/internal/imagestore"
)

var errNoResult = errors.New("classifier returned no result")

// Phase names the observable state of the shell.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSelecting  Phase = "selecting"
	PhaseProcessing Phase = "processing"
	PhaseDone       Phase = "done"
)

// State is a snapshot of the shell. Image, Processing and Result are kept
// consistent by Reduce: Processing implies an Image and no Result.
type State struct {
	Phase      Phase              `json:"phase"`
	Image      *imagestore.Image  `json:"image,omitempty"`
	Processing bool               `json:"processing"`
	Result     *classifier.Result `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	Generation uint64             `json:"generation"`
}

// Equal reports whether two snapshots describe the same state.
func (s State) Equal(o State) bool {
	return s.Phase == o.Phase &&
		s.Processing == o.Processing &&
		s.Error == o.Error &&
		s.Generation == o.Generation &&
		imageID(s.Image) == imageID(o.Image) &&
		s.Result == o.Result
}

func imageID(img *imagestore.Image) string {
	if img == nil {
		return ""
	}
	return img.ID
}

// Event is one of Selected, Cleared or ClassificationSettled.
type Event interface {
	isEvent()
}

// Selected carries a freshly acquired image handle.
type Selected struct {
	Image imagestore.Image
}

// Cleared resets the shell.
type Cleared struct{}

// ClassificationSettled reports the outcome of the request stamped with
// Generation. Exactly one of Result and Err is set.
type ClassificationSettled struct {
	Generation uint64
	Result     *classifier.Result
	Err        error
	Elapsed    time.Duration
}

func (Selected) isEvent()              {}
func (Cleared) isEvent()               {}
func (ClassificationSettled) isEvent() {}

// Effect is work the runtime performs after a transition.
type Effect interface {
	isEffect()
}

// ReleaseImage releases a handle that is no longer referenced by the state.
type ReleaseImage struct {
	Image imagestore.Image
}

// StartClassification begins classifying Image under Generation.
type StartClassification struct {
	Generation uint64
	Image      imagestore.Image
}

// CancelClassification aborts the in-flight request for Generation.
type CancelClassification struct {
	Generation uint64
}

func (ReleaseImage) isEffect()         {}
func (StartClassification) isEffect()  {}
func (CancelClassification) isEffect() {}

// Reduce is the transition function of the shell. It never performs I/O;
// the returned effects describe what must happen next.
func Reduce(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case Selected:
		var effects []Effect
		if s.Processing {
			effects = append(effects, CancelClassification{Generation: s.Generation})
		}
		if s.Image != nil && s.Image.ID != ev.Image.ID {
			effects = append(effects, ReleaseImage{Image: *s.Image})
		}
		img := ev.Image
		next := State{
			Phase:      PhaseProcessing,
			Image:      &img,
			Processing: true,
			Generation: s.Generation + 1,
		}
		effects = append(effects, StartClassification{Generation: next.Generation, Image: img})
		return next, effects

	case Cleared:
		if s.Image == nil && !s.Processing && s.Result == nil && s.Error == "" {
			return s, nil
		}
		var effects []Effect
		if s.Processing {
			effects = append(effects, CancelClassification{Generation: s.Generation})
		}
		if s.Image != nil {
			effects = append(effects, ReleaseImage{Image: *s.Image})
		}
		return State{Phase: PhaseIdle, Generation: s.Generation}, effects

	case ClassificationSettled:
		if !s.Processing || ev.Generation != s.Generation {
			return s, nil
		}
		next := s
		next.Processing = false
		if ev.Err == nil && ev.Result == nil {
			ev.Err = errNoResult
		}
		if ev.Err != nil {
			next.Phase = PhaseSelecting
			next.Error = ev.Err.Error()
			return next, nil
		}
		next.Phase = PhaseDone
		next.Result = ev.Result
		return next, nil
	}
	return s, nil
}

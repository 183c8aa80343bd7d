package web

import (
	"fmt"
	"math"
	"time"

	"github.com/example/deepfake-detector/internal/classifier"
	"github.com/example/deepfake-detector/internal/imagestore"
	"github.com/example/deepfake-detector/internal/shell"
)

// View is the data the templates render.
type View struct {
	Phase       string
	Image       *imagestore.Image
	Processing  bool
	Result      *ResultView
	Error       string
	MaxUploadMB int64
}

// ResultView is a display-ready classification result.
type ResultView struct {
	Authentic      bool
	Verdict        string
	Summary        string
	Confidence     string
	ConfidenceBar  int
	Indicators     []string
	ProcessingTime string
}

// NewView maps a shell snapshot to template data.
func NewView(st shell.State, maxUploadBytes int64) View {
	v := View{
		Phase:       string(st.Phase),
		Image:       st.Image,
		Processing:  st.Processing,
		Error:       st.Error,
		MaxUploadMB: maxUploadBytes >> 20,
	}
	if st.Result != nil && !st.Processing {
		v.Result = newResultView(st.Result)
	}
	return v
}

func newResultView(r *classifier.Result) *ResultView {
	rv := &ResultView{
		Authentic:      r.Authentic,
		Verdict:        "AI-Generated",
		Summary:        "This image shows signs of being produced by a generative model.",
		Confidence:     fmt.Sprintf("%.1f%%", r.Confidence*100),
		ConfidenceBar:  int(math.Round(r.Confidence * 100)),
		Indicators:     r.Indicators,
		ProcessingTime: r.ProcessingTime.Round(10 * time.Millisecond).String(),
	}
	if r.Authentic {
		rv.Verdict = "Authentic"
		rv.Summary = "This image appears to be a genuine photograph."
	}
	return rv
}

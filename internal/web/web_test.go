package web

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/example/deepfake-detector/internal/classifier"
	"github.com/example/deepfake-detector/internal/imagestore"
	"github.com/example/deepfake-detector/internal/shell"
)

func render(t *testing.T, name string, view View) string {
	t.Helper()
	tmpl, err := Templates()
	if err != nil {
		t.Fatalf("failed to parse templates: %v", err)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, view); err != nil {
		t.Fatalf("failed to render %s: %v", name, err)
	}
	return buf.String()
}

func TestPanelIdleShowsDropzone(t *testing.T) {
	html := render(t, "panel", NewView(shell.State{Phase: shell.PhaseIdle}, 10<<20))

	if !strings.Contains(html, "data-dropzone") {
		t.Fatal("expected upload dropzone")
	}
	if !strings.Contains(html, "up to 10 MB") {
		t.Fatal("expected upload limit hint")
	}
	if strings.Contains(html, "Analyzing image") || strings.Contains(html, "verdict") {
		t.Fatal("expected neither loading indicator nor result")
	}
}

func TestPanelProcessingShowsLoadingIndicator(t *testing.T) {
	img := &imagestore.Image{ID: "abc", URL: imagestore.URLPrefix + "abc", FileName: "cat.png", Width: 4, Height: 3}
	html := render(t, "panel", NewView(shell.State{Phase: shell.PhaseProcessing, Image: img, Processing: true}, 10<<20))

	if !strings.Contains(html, "Analyzing image") {
		t.Fatal("expected loading indicator")
	}
	if !strings.Contains(html, `src="/images/abc"`) {
		t.Fatal("expected image preview")
	}
	if !strings.Contains(html, "disabled") {
		t.Fatal("expected clear to be disabled while processing")
	}
}

func TestPanelDoneShowsResult(t *testing.T) {
	img := &imagestore.Image{ID: "abc", URL: imagestore.URLPrefix + "abc", FileName: "cat.png"}
	result := &classifier.Result{
		Label:          classifier.LabelSynthetic,
		Confidence:     0.873,
		Indicators:     []string{"periodic upsampling artifacts"},
		ProcessingTime: 2 * time.Second,
	}
	html := render(t, "panel", NewView(shell.State{Phase: shell.PhaseDone, Image: img, Result: result}, 10<<20))

	for _, want := range []string{"AI-Generated", "87.3%", "width: 87%", "periodic upsampling artifacts", "result-synthetic"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in rendered result", want)
		}
	}
	if strings.Contains(html, "Analyzing image") {
		t.Fatal("expected no loading indicator")
	}
}

func TestPanelFailureShowsError(t *testing.T) {
	img := &imagestore.Image{ID: "abc", URL: imagestore.URLPrefix + "abc"}
	html := render(t, "panel", NewView(shell.State{Phase: shell.PhaseSelecting, Image: img, Error: "model offline"}, 10<<20))

	if !strings.Contains(html, "Classification failed: model offline") {
		t.Fatal("expected error message")
	}
}

func TestIndexIncludesPanelAndAssets(t *testing.T) {
	html := render(t, "index", NewView(shell.State{Phase: shell.PhaseIdle}, 10<<20))

	for _, want := range []string{`id="panel"`, `data-phase="idle"`, "/static/app.js", "/static/styles.css", "Detect AI-Generated"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in page", want)
		}
	}
}

func TestStaticServesAssets(t *testing.T) {
	f, err := Static().Open("app.js")
	if err != nil {
		t.Fatalf("expected app.js, got error: %v", err)
	}
	f.Close()
}

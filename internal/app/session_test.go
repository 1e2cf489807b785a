package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"genstudio/internal/studio"
	"genstudio/internal/testutil"
)

func TestRunEditSession(t *testing.T) {
	ctx := context.Background()
	gen := testutil.NewFakeGenerator(testutil.Succeed("red"), testutil.Succeed("blue"), testutil.Succeed("green"))
	a := newTestApp(t, memoryConfig(t), gen)
	defer a.Close()

	out := filepath.Join(t.TempDir(), "current.png")
	input := strings.Join([]string{
		":save",
		"make it red",
		"make it blue",
		":undo",
		":write " + out,
		"make it green",
		":redo",
		":undo",
		":save",
		":quit",
		"never read",
	}, "\n")

	var stdout bytes.Buffer
	if err := a.RunEditSession(ctx, writePNG(t), strings.NewReader(input), &stdout); err != nil {
		t.Fatalf("RunEditSession() error = %v", err)
	}

	if gen.Calls() != 3 {
		t.Errorf("generator calls = %d, want 3", gen.Calls())
	}
	for i, req := range gen.Requests {
		if req.AuxiliaryImage == nil || !bytes.Equal(req.AuxiliaryImage.Data, pngBytes) {
			t.Errorf("request %d did not edit the source image", i)
		}
	}

	written, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading :write output: %v", err)
	}
	if string(written) != "red" {
		t.Errorf(":write wrote %q, want the state after undo (%q)", written, "red")
	}

	history, _ := a.History("")
	if len(history) != 1 {
		t.Fatalf("History() = %d entries, want 1", len(history))
	}
	if history[0].Prompt != "make it red" || history[0].Variant != studio.VariantEdit {
		t.Errorf("saved entry = %+v, want the red edit", history[0])
	}

	for _, want := range []string{"Nothing to save", "Nothing to redo", "Saved as history entry"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("output missing %q:\n%s", want, stdout.String())
		}
	}
}

func TestRunEditSession_Placeholder(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, memoryConfig(t), testutil.NewFakeGenerator())
	defer a.Close()

	var stdout bytes.Buffer
	if err := a.RunEditSession(ctx, writePNG(t), strings.NewReader("make it red\n:bogus\n"), &stdout); err != nil {
		t.Fatalf("RunEditSession() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "placeholder") {
		t.Errorf("output does not mention the placeholder:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "Unknown command :bogus") {
		t.Errorf("output does not reject :bogus:\n%s", stdout.String())
	}
	if history, _ := a.History(""); len(history) != 0 {
		t.Errorf("History() = %d entries, want 0", len(history))
	}
}

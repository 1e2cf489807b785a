package studio_test

import (
	"context"
	"errors"
	"testing"

	"genstudio/internal/studio"
	"genstudio/internal/testutil"
)

var errBlocked = errors.New("prompt blocked")

func TestBuilder_GenerateFanOut(t *testing.T) {
	tests := []struct {
		name       string
		results    []testutil.FakeResult
		wantImages int
		wantPH     bool
	}{
		{
			name:       "all succeed",
			results:    []testutil.FakeResult{testutil.Succeed("1"), testutil.Succeed("2"), testutil.Succeed("3"), testutil.Succeed("4")},
			wantImages: 4,
		},
		{
			name:       "one of four succeeds",
			results:    []testutil.FakeResult{testutil.Fail(errBlocked), testutil.Succeed("only"), testutil.Fail(errBlocked), testutil.Fail(studio.ErrNoImage)},
			wantImages: 1,
		},
		{
			name:       "none succeed",
			results:    []testutil.FakeResult{testutil.Fail(errBlocked), testutil.Fail(errBlocked), testutil.Fail(errBlocked), testutil.Fail(studio.ErrMissingAPIKey)},
			wantImages: 1,
			wantPH:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := testutil.NewFakeGenerator(tt.results...)
			b := studio.NewBuilder(gen, testutil.NewTestVault(), studio.NewNopLogger())

			images := b.Generate(context.Background(), studio.GenerateInput{Prompt: "a cat", Style: studio.NoStyle}, nil)

			if gen.Calls() != studio.DefaultFanOut {
				t.Errorf("generator called %d times, want %d", gen.Calls(), studio.DefaultFanOut)
			}
			if len(images) != tt.wantImages {
				t.Fatalf("got %d images, want %d", len(images), tt.wantImages)
			}
			for _, img := range images {
				if img.IsPlaceholder() != tt.wantPH {
					t.Errorf("IsPlaceholder() = %v, want %v", img.IsPlaceholder(), tt.wantPH)
				}
			}
			if tt.name == "one of four succeeds" && string(images[0].Data) != "only" {
				t.Errorf("image = %q, want the successful one", images[0].Data)
			}
		})
	}
}

func TestBuilder_StylePrompt(t *testing.T) {
	tests := []struct {
		style, want string
	}{
		{"", "a cat"},
		{studio.NoStyle, "a cat"},
		{"Post-Y2K Glam Neutral", "Post-Y2K Glam Neutral style: a cat"},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			gen := testutil.NewFakeGenerator()
			b := studio.NewBuilder(gen, testutil.NewTestVault(), studio.NewNopLogger())
			b.Generate(context.Background(), studio.GenerateInput{Prompt: "a cat", Style: tt.style}, nil)

			for _, req := range gen.Requests {
				if req.Prompt != tt.want {
					t.Errorf("prompt = %q, want %q", req.Prompt, tt.want)
				}
				if req.AuxiliaryImage != nil {
					t.Error("unconditioned request carries an auxiliary image")
				}
				if req.ResponseModality != studio.ModalityImage {
					t.Errorf("modality = %q", req.ResponseModality)
				}
			}
		})
	}
}

func TestBuilder_ModelConditioning(t *testing.T) {
	ctx := context.Background()
	vault := testutil.NewTestVault()
	preview := studio.Image{Data: []byte("preview-bytes"), MimeType: "image/jpeg"}
	ref, err := studio.StoreImage(ctx, vault, preview)
	if err != nil {
		t.Fatalf("StoreImage() error = %v", err)
	}

	catalog := []studio.TrainedModel{
		{ID: "m1", Name: "Fluffy", Description: "my cat", Status: studio.ModelReady, PreviewImages: []studio.ImageRef{ref}},
		{ID: "m2", Name: "Bare", Status: studio.ModelReady, PreviewImages: []studio.ImageRef{ref}},
		{ID: "m3", Name: "Pending", Status: studio.ModelTraining, PreviewImages: []studio.ImageRef{}},
	}

	t.Run("prompt and preview image", func(t *testing.T) {
		gen := testutil.NewFakeGenerator(testutil.Succeed("1"))
		b := studio.NewBuilder(gen, vault, studio.NewNopLogger())
		b.Generate(ctx, studio.GenerateInput{Prompt: "on a beach", Style: "Post-Y2K Glam Neutral", ModelID: "m1"}, catalog)

		if gen.Calls() != studio.DefaultFanOut {
			t.Fatalf("generator called %d times", gen.Calls())
		}
		req := gen.Requests[0]
		want := `Using concept "Fluffy" (my cat): on a beach`
		if req.Prompt != want {
			t.Errorf("prompt = %q, want %q", req.Prompt, want)
		}
		if req.AuxiliaryImage == nil || string(req.AuxiliaryImage.Data) != "preview-bytes" || req.AuxiliaryImage.MimeType != "image/jpeg" {
			t.Errorf("auxiliary image = %+v, want the first preview", req.AuxiliaryImage)
		}
	})

	t.Run("missing description", func(t *testing.T) {
		if got := studio.ConceptPrompt("x", catalog[1]); got != `Using concept "Bare" (custom concept): x` {
			t.Errorf("ConceptPrompt() = %q", got)
		}
	})

	for _, id := range []string{"unknown", "m3"} {
		t.Run("unusable model "+id, func(t *testing.T) {
			gen := testutil.NewFakeGenerator(testutil.Succeed("1"))
			b := studio.NewBuilder(gen, vault, studio.NewNopLogger())
			images := b.Generate(ctx, studio.GenerateInput{Prompt: "x", ModelID: id}, catalog)

			if gen.Calls() != 0 {
				t.Errorf("generator called %d times, want 0", gen.Calls())
			}
			if len(images) != 1 || !images[0].IsPlaceholder() {
				t.Errorf("got %d images, want one placeholder", len(images))
			}
		})
	}
}

func TestBuilder_Edit(t *testing.T) {
	ctx := context.Background()
	source := studio.Image{Data: []byte("source"), MimeType: "image/png"}

	t.Run("success", func(t *testing.T) {
		gen := testutil.NewFakeGenerator(testutil.Succeed("edited"))
		b := studio.NewBuilder(gen, testutil.NewTestVault(), studio.NewNopLogger())

		got := b.Edit(ctx, "make it blue", source)
		if string(got.Data) != "edited" {
			t.Errorf("Edit() = %q", got.Data)
		}
		req := gen.Requests[0]
		if req.Prompt != "make it blue" || req.AuxiliaryImage == nil || string(req.AuxiliaryImage.Data) != "source" {
			t.Errorf("request = %+v", req)
		}
	})

	t.Run("failure degrades to placeholder", func(t *testing.T) {
		gen := testutil.NewFakeGenerator(testutil.Fail(errBlocked))
		b := studio.NewBuilder(gen, testutil.NewTestVault(), studio.NewNopLogger())

		if got := b.ContextEdit(ctx, "same cat in space", source); !got.IsPlaceholder() {
			t.Error("ContextEdit() failure did not return the placeholder")
		}
		if gen.Calls() != 1 {
			t.Errorf("generator called %d times, want 1", gen.Calls())
		}
	})
}

package studio

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFanOut is the number of parallel requests issued by Generate.
	DefaultFanOut = 4

	// NoStyle is the style sentinel that leaves the prompt unprefixed.
	NoStyle = "No Style"
)

// Builder shapes generation requests and degrades every failure to the
// placeholder image. It never retries and never returns an error.
type Builder struct {
	generator ImageGenerator
	vault     MediaVault
	logger    Logger
	fanOut    int
}

// NewBuilder creates a Builder. vault is used to read the preview image of a
// custom model for conditioning.
func NewBuilder(generator ImageGenerator, vault MediaVault, logger Logger) *Builder {
	return &Builder{
		generator: generator,
		vault:     vault,
		logger:    logger,
		fanOut:    DefaultFanOut,
	}
}

// GenerateInput describes one generate operation.
type GenerateInput struct {
	Prompt  string
	Style   string
	ModelID string
}

// Generate issues DefaultFanOut parallel requests and returns every image that
// came back. If none did, or the requested model cannot be used for
// conditioning, it returns exactly one placeholder.
func (b *Builder) Generate(ctx context.Context, in GenerateInput, catalog []TrainedModel) []Image {
	req, err := b.generateRequest(ctx, in, catalog)
	if err != nil {
		b.logger.Error("building generate request", "model", in.ModelID, "error", err)
		return []Image{PlaceholderImage()}
	}

	var (
		mu     sync.Mutex
		images []Image
		g      errgroup.Group
	)
	for attempt := 1; attempt <= b.fanOut; attempt++ {
		g.Go(func() error {
			img, err := b.generator.GenerateImage(ctx, req)
			if err != nil {
				b.logger.Warn("generation attempt failed", "attempt", attempt, "error", err)
				return nil
			}
			mu.Lock()
			images = append(images, img)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(images) == 0 {
		b.logger.Warn("all generation attempts failed, returning placeholder", "attempts", b.fanOut)
		return []Image{PlaceholderImage()}
	}
	b.logger.Info("images generated", "count", len(images), "attempts", b.fanOut)
	return images
}

// Edit asks for one edited version of source.
func (b *Builder) Edit(ctx context.Context, prompt string, source Image) Image {
	return b.single(ctx, "edit", prompt, source)
}

// ContextEdit asks for one new image using image as context. The request is
// identical to Edit; only the recorded history variant differs.
func (b *Builder) ContextEdit(ctx context.Context, prompt string, image Image) Image {
	return b.single(ctx, "context-edit", prompt, image)
}

func (b *Builder) single(ctx context.Context, op, prompt string, image Image) Image {
	img, err := b.generator.GenerateImage(ctx, GenerationRequest{
		Prompt:           prompt,
		AuxiliaryImage:   &image,
		ResponseModality: ModalityImage,
	})
	if err != nil {
		b.logger.Warn("generation failed, returning placeholder", "operation", op, "error", err)
		return PlaceholderImage()
	}
	return img
}

// generateRequest applies the style prefix or, when a model is selected, the
// conditioning phrase and the model's first preview image. Model conditioning
// replaces the style prefix.
func (b *Builder) generateRequest(ctx context.Context, in GenerateInput, catalog []TrainedModel) (GenerationRequest, error) {
	req := GenerationRequest{
		Prompt:           StylePrompt(in.Prompt, in.Style),
		ResponseModality: ModalityImage,
	}
	if in.ModelID == "" {
		return req, nil
	}

	model := findModel(catalog, in.ModelID)
	if model == nil {
		return req, fmt.Errorf("model %s: %w", in.ModelID, ErrNotFound)
	}
	if len(model.PreviewImages) == 0 {
		return req, fmt.Errorf("model %s has no preview images", in.ModelID)
	}

	preview, err := LoadImage(ctx, b.vault, model.PreviewImages[0])
	if err != nil {
		return req, fmt.Errorf("reading preview image of model %s: %w", in.ModelID, err)
	}

	req.Prompt = ConceptPrompt(in.Prompt, *model)
	req.AuxiliaryImage = &preview
	return req, nil
}

// StylePrompt prefixes prompt with style unless style is empty or NoStyle.
func StylePrompt(prompt, style string) string {
	if style == "" || style == NoStyle {
		return prompt
	}
	return fmt.Sprintf("%s style: %s", style, prompt)
}

// ConceptPrompt prefixes prompt with a phrase naming the custom model.
func ConceptPrompt(prompt string, model TrainedModel) string {
	description := model.Description
	if description == "" {
		description = "custom concept"
	}
	return fmt.Sprintf("Using concept \"%s\" (%s): %s", model.Name, description, prompt)
}

func findModel(catalog []TrainedModel, id string) *TrainedModel {
	for i := range catalog {
		if catalog[i].ID == id {
			return &catalog[i]
		}
	}
	return nil
}

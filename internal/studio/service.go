package studio

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// DefaultUser is the user collections are scoped to when none is configured.
const DefaultUser = "guest"

// DefaultAspectRatio is recorded when a generate request does not name one.
const DefaultAspectRatio = "1:1"

// Styles lists the style prefixes offered to the user.
var Styles = []string{
	NoStyle,
	"late-'90s to early-2000s R&B or pop girl group album cover",
	"Post-Y2K Glam Neutral",
}

// AspectRatios lists the aspect ratios offered to the user. The ratio is
// recorded with the history entry; it is not sent to the endpoint.
var AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4", "ginormous square"}

// StudioService is the orchestration layer used by the CLI. It owns the
// persisted collections of one user and records every generation in history.
type StudioService struct {
	builder *Builder
	vault   MediaVault
	logger  Logger
	idgen   IDGenerator

	history *Collection[HistoryEntry]
	prompts *Collection[SavedPrompt]
	models  *Collection[TrainedModel]

	// settings holds at most one Preferences record.
	settings *Collection[Preferences]
}

// NewStudioService creates a StudioService for user. Mount must be called
// before any operation that changes a collection.
func NewStudioService(store *Store, user string, builder *Builder, vault MediaVault, logger Logger, idgen IDGenerator) *StudioService {
	if user == "" {
		user = DefaultUser
	}
	return &StudioService{
		builder: builder,
		vault:   vault,
		logger:  logger,
		idgen:   idgen,
		history: NewCollection(store, CollectionHistory, UserKey(CollectionHistory, user), []HistoryEntry{}, logger),
		prompts: NewCollection(store, CollectionPrompts, UserKey(CollectionPrompts, user), []SavedPrompt{}, logger),
		models:  NewCollection(store, CollectionModels, UserKey(CollectionModels, user), []TrainedModel{}, logger),

		settings: NewCollection(store, CollectionSettings, UserKey(CollectionSettings, user), []Preferences{}, logger),
	}
}

// Mount loads the user's collections and waits for the loads to resolve.
func (s *StudioService) Mount(ctx context.Context) error {
	s.history.Mount(ctx)
	s.prompts.Mount(ctx)
	s.models.Mount(ctx)
	s.settings.Mount(ctx)

	for _, wait := range []func(context.Context) error{s.history.Wait, s.prompts.Wait, s.models.Wait, s.settings.Wait} {
		if err := wait(ctx); err != nil {
			return fmt.Errorf("waiting for collections to load: %w", err)
		}
	}
	return nil
}

// Flush waits for every pending save.
func (s *StudioService) Flush() {
	s.history.Flush()
	s.prompts.Flush()
	s.models.Flush()
	s.settings.Flush()
}

// GenerateOptions describes a generate request.
type GenerateOptions struct {
	Prompt      string
	ModelID     string
	Style       string
	AspectRatio string
}

// Generate runs the fan-out generation and records the result in history.
// The returned entry holds every image produced, or one placeholder.
func (s *StudioService) Generate(ctx context.Context, opts GenerateOptions) (HistoryEntry, error) {
	if strings.TrimSpace(opts.Prompt) == "" {
		return HistoryEntry{}, ErrEmptyPrompt
	}
	if opts.Style == "" {
		opts.Style = NoStyle
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = DefaultAspectRatio
	}

	images := s.builder.Generate(ctx, GenerateInput{
		Prompt:  opts.Prompt,
		Style:   opts.Style,
		ModelID: opts.ModelID,
	}, s.models.Get())

	refs, err := s.storeImages(ctx, images)
	if err != nil {
		return HistoryEntry{}, err
	}

	entry := NewGenerateEntry(s.idgen.New(), opts.Prompt, refs, GenerateParams{
		ModelID:     opts.ModelID,
		Style:       opts.Style,
		AspectRatio: opts.AspectRatio,
	})
	if err := s.prependHistory(entry); err != nil {
		return HistoryEntry{}, err
	}

	s.logger.Info("generated", "id", entry.ID, "images", len(refs), "model", opts.ModelID, "style", opts.Style)
	return entry, nil
}

// Preferences returns the saved generate preferences, or the zero value.
func (s *StudioService) Preferences() Preferences {
	if prefs := s.settings.Get(); len(prefs) > 0 {
		return prefs[0]
	}
	return Preferences{}
}

// SavePreferences replaces the saved generate preferences. Unchanged
// preferences are not written.
func (s *StudioService) SavePreferences(prefs Preferences) error {
	_, err := s.settings.Change(func(stored []Preferences) ([]Preferences, bool) {
		if len(stored) > 0 && stored[0] == prefs {
			return stored, false
		}
		return []Preferences{prefs}, true
	})
	if err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

// ApplyPreferences fills the options opts leaves empty from the saved
// preferences. A saved model that no longer exists is not applied.
func (s *StudioService) ApplyPreferences(opts GenerateOptions) GenerateOptions {
	prefs := s.Preferences()
	if opts.Style == "" {
		opts.Style = prefs.Style
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = prefs.AspectRatio
	}
	if opts.ModelID == "" && prefs.ModelID != "" {
		if _, err := s.FindModel(prefs.ModelID); err == nil {
			opts.ModelID = prefs.ModelID
		}
	}
	return opts
}

// Regenerate repeats the generate request recorded in a history entry.
// Entries of the edit variants are regenerated from their prompt alone.
func (s *StudioService) Regenerate(ctx context.Context, id string) (HistoryEntry, error) {
	entry, err := s.FindHistory(id)
	if err != nil {
		return HistoryEntry{}, err
	}

	opts := GenerateOptions{Prompt: entry.Prompt}
	if entry.Generate != nil {
		opts.ModelID = entry.Generate.ModelID
		opts.Style = entry.Generate.Style
		opts.AspectRatio = entry.Generate.AspectRatio
	}
	return s.Generate(ctx, opts)
}

// Preview asks for one edited version of source without recording it.
// The interactive edit session uses it for every step.
func (s *StudioService) Preview(ctx context.Context, prompt string, source Image) (Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return Image{}, ErrEmptyPrompt
	}
	return s.builder.Edit(ctx, prompt, source), nil
}

// RecordEdit stores source and result and records an edit entry in history.
func (s *StudioService) RecordEdit(ctx context.Context, prompt string, source, result Image) (HistoryEntry, error) {
	return s.record(ctx, VariantEdit, prompt, source, result)
}

// Edit asks for one edited version of source and records it in history.
func (s *StudioService) Edit(ctx context.Context, prompt string, source Image) (HistoryEntry, error) {
	result, err := s.Preview(ctx, prompt, source)
	if err != nil {
		return HistoryEntry{}, err
	}
	return s.RecordEdit(ctx, prompt, source, result)
}

// ContextEdit asks for one new image that uses image as context and records
// it in history.
func (s *StudioService) ContextEdit(ctx context.Context, prompt string, image Image) (HistoryEntry, error) {
	if strings.TrimSpace(prompt) == "" {
		return HistoryEntry{}, ErrEmptyPrompt
	}
	result := s.builder.ContextEdit(ctx, prompt, image)
	return s.record(ctx, VariantContextEdit, prompt, image, result)
}

func (s *StudioService) record(ctx context.Context, variant Variant, prompt string, source, result Image) (HistoryEntry, error) {
	sourceRef, err := StoreImage(ctx, s.vault, source)
	if err != nil {
		return HistoryEntry{}, err
	}
	refs, err := s.storeImages(ctx, []Image{result})
	if err != nil {
		return HistoryEntry{}, err
	}

	entry := NewEditEntry(s.idgen.New(), prompt, variant, refs, sourceRef)
	if err := s.prependHistory(entry); err != nil {
		return HistoryEntry{}, err
	}

	s.logger.Info("edit recorded", "id", entry.ID, "variant", variant, "placeholder", refs[0].Placeholder)
	return entry, nil
}

func (s *StudioService) storeImages(ctx context.Context, images []Image) ([]ImageRef, error) {
	refs := make([]ImageRef, 0, len(images))
	for _, img := range images {
		ref, err := StoreImage(ctx, s.vault, img)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *StudioService) prependHistory(entry HistoryEntry) error {
	err := s.history.Update(func(entries []HistoryEntry) []HistoryEntry {
		return append([]HistoryEntry{entry}, entries...)
	})
	if err != nil {
		return fmt.Errorf("recording history entry: %w", err)
	}
	return nil
}

// History returns history entries newest first. An empty variant returns all
// entries; otherwise only entries of that variant.
func (s *StudioService) History(variant Variant) []HistoryEntry {
	entries := s.history.Get()
	SortNewestFirst(entries, func(e HistoryEntry) string { return e.ID })
	if variant == "" {
		return entries
	}
	filtered := entries[:0]
	for _, e := range entries {
		if e.Variant == variant {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// FindHistory returns the history entry with id.
func (s *StudioService) FindHistory(id string) (HistoryEntry, error) {
	for _, e := range s.history.Get() {
		if e.ID == id {
			return e, nil
		}
	}
	return HistoryEntry{}, fmt.Errorf("history entry %s: %w", id, ErrNotFound)
}

// DeleteHistory removes a history entry. Its images stay in the media vault.
func (s *StudioService) DeleteHistory(id string) error {
	return removeByID(s.history, id, func(e HistoryEntry) string { return e.ID })
}

// SavePrompt keeps text for reuse. Blank text and text already saved are
// ignored; added reports whether a new prompt was stored.
func (s *StudioService) SavePrompt(text string) (added bool, err error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	added, err = s.prompts.Change(func(prompts []SavedPrompt) ([]SavedPrompt, bool) {
		for _, p := range prompts {
			if p.Text == text {
				return prompts, false
			}
		}
		return append([]SavedPrompt{{ID: s.idgen.New(), Text: text}}, prompts...), true
	})
	if err != nil {
		return false, fmt.Errorf("saving prompt: %w", err)
	}
	return added, nil
}

// Prompts returns the saved prompts, newest first.
func (s *StudioService) Prompts() []SavedPrompt {
	prompts := s.prompts.Get()
	SortNewestFirst(prompts, func(p SavedPrompt) string { return p.ID })
	return prompts
}

// DeletePrompt removes a saved prompt.
func (s *StudioService) DeletePrompt(id string) error {
	return removeByID(s.prompts, id, func(p SavedPrompt) string { return p.ID })
}

// TrainModel creates a custom model from images. The record is persisted in
// the training state first; it becomes ready once every image is stored as a
// preview, or failed if storing them fails.
func (s *StudioService) TrainModel(ctx context.Context, name, description string, images []Image) (TrainedModel, error) {
	if strings.TrimSpace(name) == "" || len(images) == 0 {
		return TrainedModel{}, ErrInvalidModel
	}

	model := TrainedModel{
		ID:            s.idgen.New(),
		Name:          name,
		Description:   description,
		Status:        ModelTraining,
		PreviewImages: []ImageRef{},
	}
	err := s.models.Update(func(models []TrainedModel) []TrainedModel {
		return append([]TrainedModel{model}, models...)
	})
	if err != nil {
		return TrainedModel{}, fmt.Errorf("creating model: %w", err)
	}
	s.logger.Info("model training started", "id", model.ID, "name", name, "images", len(images))

	previews, storeErr := s.storeImages(ctx, images)
	if storeErr != nil {
		s.logger.Error("storing training images", "id", model.ID, "error", storeErr)
		model.Status = ModelFailed
	} else {
		model.Status = ModelReady
		model.PreviewImages = previews
	}

	if err := s.replaceModel(model); err != nil {
		return TrainedModel{}, err
	}
	if storeErr != nil {
		return model, fmt.Errorf("training model %s: %w", model.ID, storeErr)
	}
	s.logger.Info("model ready", "id", model.ID, "previews", len(previews))
	return model, nil
}

// UpdateModel renames a model and replaces its description.
func (s *StudioService) UpdateModel(id, name, description string) (TrainedModel, error) {
	if strings.TrimSpace(name) == "" {
		return TrainedModel{}, ErrInvalidModel
	}
	model, err := s.FindModel(id)
	if err != nil {
		return TrainedModel{}, err
	}
	if model.Status == ModelFailed {
		return TrainedModel{}, fmt.Errorf("updating model %s: %w", id, ErrModelFailed)
	}

	model.Name = name
	model.Description = description
	if err := s.replaceModel(model); err != nil {
		return TrainedModel{}, err
	}
	return model, nil
}

func (s *StudioService) replaceModel(model TrainedModel) error {
	err := s.models.Update(func(models []TrainedModel) []TrainedModel {
		for i := range models {
			if models[i].ID == model.ID {
				models[i] = model
			}
		}
		return models
	})
	if err != nil {
		return fmt.Errorf("updating model %s: %w", model.ID, err)
	}
	return nil
}

// FindModel returns the model with id.
func (s *StudioService) FindModel(id string) (TrainedModel, error) {
	for _, m := range s.models.Get() {
		if m.ID == id {
			return m, nil
		}
	}
	return TrainedModel{}, fmt.Errorf("model %s: %w", id, ErrNotFound)
}

// DeleteModel removes a model. Its preview images stay in the media vault.
func (s *StudioService) DeleteModel(id string) error {
	return removeByID(s.models, id, func(m TrainedModel) string { return m.ID })
}

// Models returns the trained models, newest first.
func (s *StudioService) Models() []TrainedModel {
	models := s.models.Get()
	SortNewestFirst(models, func(m TrainedModel) string { return m.ID })
	return models
}

// ExportImage writes the payload ref points at to w.
func (s *StudioService) ExportImage(ctx context.Context, ref ImageRef, w io.Writer) error {
	if err := s.vault.GetContent(ctx, ref.Checksum, w); err != nil {
		return fmt.Errorf("exporting image %s: %w", ref.Checksum, err)
	}
	return nil
}

func removeByID[E any](c *Collection[E], id string, idOf func(E) string) error {
	found, err := c.Change(func(records []E) ([]E, bool) {
		kept := records[:0]
		for _, r := range records {
			if idOf(r) != id {
				kept = append(kept, r)
			}
		}
		return kept, len(kept) < len(records)
	})
	if err != nil {
		return fmt.Errorf("deleting %s from %s: %w", id, c.Name(), err)
	}
	if !found {
		return fmt.Errorf("%s in %s: %w", id, c.Name(), ErrNotFound)
	}
	return nil
}

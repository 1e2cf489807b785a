package studio

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"
)

// Image is an image payload: raw bytes plus their MIME type.
type Image struct {
	Data     []byte
	MimeType string
}

// Checksum returns the SHA-256 of the image bytes as a lowercase hex string.
// Images are stored in the media vault under this checksum.
func (img Image) Checksum() string {
	h := sha256.Sum256(img.Data)
	return hex.EncodeToString(h[:])
}

// IsPlaceholder reports whether img is the fixed "generation failed" image.
func (img Image) IsPlaceholder() bool {
	return img.MimeType == placeholderMimeType && bytes.Equal(img.Data, placeholderSVG)
}

// ImageRef points at an image payload stored in the media vault.
type ImageRef struct {
	Checksum    string `json:"checksum"`
	MimeType    string `json:"mimeType"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Variant tags how a history entry was produced.
type Variant string

const (
	VariantGenerate    Variant = "generate"
	VariantEdit        Variant = "edit"
	VariantContextEdit Variant = "context-edit"
)

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantGenerate, VariantEdit, VariantContextEdit:
		return true
	}
	return false
}

// GenerateParams holds the inputs only a generate entry carries.
type GenerateParams struct {
	ModelID     string `json:"modelId,omitempty"`
	Style       string `json:"style,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// EditParams holds the inputs only edit and context-edit entries carry.
type EditParams struct {
	Source ImageRef `json:"source"`
}

// HistoryEntry records one generation. Exactly one of Generate or Edit is set,
// matching Variant: Generate for VariantGenerate, Edit for the two edit variants.
type HistoryEntry struct {
	ID       string          `json:"id"`
	Images   []ImageRef      `json:"images"`
	Prompt   string          `json:"prompt"`
	Variant  Variant         `json:"variant"`
	Generate *GenerateParams `json:"generate,omitempty"`
	Edit     *EditParams     `json:"edit,omitempty"`
}

// NewGenerateEntry builds a generate history entry.
func NewGenerateEntry(id, prompt string, images []ImageRef, params GenerateParams) HistoryEntry {
	return HistoryEntry{
		ID:       id,
		Images:   images,
		Prompt:   prompt,
		Variant:  VariantGenerate,
		Generate: &params,
	}
}

// NewEditEntry builds an edit or context-edit history entry.
func NewEditEntry(id, prompt string, variant Variant, images []ImageRef, source ImageRef) HistoryEntry {
	return HistoryEntry{
		ID:      id,
		Images:  images,
		Prompt:  prompt,
		Variant: variant,
		Edit:    &EditParams{Source: source},
	}
}

// Validate checks that the variant body matches the variant tag.
func (e HistoryEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("history entry has no id")
	}
	switch e.Variant {
	case VariantGenerate:
		if e.Generate == nil || e.Edit != nil {
			return fmt.Errorf("history entry %s: generate entries carry generate params only", e.ID)
		}
	case VariantEdit, VariantContextEdit:
		if e.Edit == nil || e.Generate != nil {
			return fmt.Errorf("history entry %s: %s entries carry edit params only", e.ID, e.Variant)
		}
	default:
		return fmt.Errorf("history entry %s: unknown variant %q", e.ID, e.Variant)
	}
	return nil
}

// historyEntryJSON has the same fields as HistoryEntry without its methods,
// so the JSON hooks below do not recurse.
type historyEntryJSON HistoryEntry

func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.Images == nil {
		e.Images = []ImageRef{}
	}
	return json.Marshal(historyEntryJSON(e))
}

func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var raw historyEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	entry := HistoryEntry(raw)
	if err := entry.Validate(); err != nil {
		return err
	}
	*e = entry
	return nil
}

// SavedPrompt is a prompt the user kept for reuse. Text is unique within a collection.
type SavedPrompt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Preferences are the generate options last used by a user. Generate
// requests that leave an option empty fall back to them.
type Preferences struct {
	Style       string `json:"style,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	ModelID     string `json:"modelId,omitempty"`
}

// ModelStatus is the lifecycle state of a trained model.
type ModelStatus string

const (
	ModelTraining ModelStatus = "training"
	ModelReady    ModelStatus = "ready"
	ModelFailed   ModelStatus = "failed"
)

// TrainedModel is a custom concept built from user images.
// PreviewImages is empty while the model is training.
type TrainedModel struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Status        ModelStatus `json:"status"`
	PreviewImages []ImageRef  `json:"previewImages"`
}

// SortNewestFirst orders records by their time-derived ID, newest first.
// IDs that are not numeric sort after numeric ones, in descending string order.
func SortNewestFirst[T any](items []T, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		a, aErr := strconv.ParseInt(id(items[i]), 10, 64)
		b, bErr := strconv.ParseInt(id(items[j]), 10, 64)
		switch {
		case aErr == nil && bErr == nil:
			return a > b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return id(items[i]) > id(items[j])
		}
	})
}

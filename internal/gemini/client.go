// Package gemini calls the Gemini generateContent endpoint for image output.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"genstudio/internal/studio"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 4096

// Config configures a Client.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client implements studio.ImageGenerator over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	logger studio.Logger
}

var _ studio.ImageGenerator = (*Client)(nil)

// NewClient creates a Client. A zero Timeout means no client-side timeout.
func NewClient(cfg Config, logger studio.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GenerateImage sends one generateContent call and returns the first inline
// image of the first candidate.
func (c *Client) GenerateImage(ctx context.Context, req studio.GenerationRequest) (studio.Image, error) {
	if c.cfg.APIKey == "" {
		return studio.Image{}, studio.ErrMissingAPIKey
	}

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return studio.Image{}, fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, url.PathEscape(c.cfg.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return studio.Image{}, fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)
	httpReq.Header.Set("x-request-id", requestID)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return studio.Image{}, fmt.Errorf("calling %s: %w", c.cfg.Model, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("generateContent", "request_id", requestID, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return studio.Image{}, fmt.Errorf("%s returned %s: %s", c.cfg.Model, resp.Status, bytes.TrimSpace(msg))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return studio.Image{}, fmt.Errorf("decoding response: %w", err)
	}
	return firstImage(out)
}

func buildRequest(req studio.GenerationRequest) generateRequest {
	parts := []part{{Text: req.Prompt}}
	if req.AuxiliaryImage != nil {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: req.AuxiliaryImage.MimeType,
			Data:     base64.StdEncoding.EncodeToString(req.AuxiliaryImage.Data),
		}})
	}

	modality := req.ResponseModality
	if modality == "" {
		modality = studio.ModalityImage
	}
	return generateRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{ResponseModalities: []string{modality}},
	}
}

func firstImage(resp generateResponse) (studio.Image, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return studio.Image{}, fmt.Errorf("prompt blocked (%s): %w", resp.PromptFeedback.BlockReason, studio.ErrNoImage)
		}
		return studio.Image{}, studio.ErrNoImage
	}

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return studio.Image{}, fmt.Errorf("decoding inline image: %w", err)
		}
		mimeType := p.InlineData.MimeType
		if mimeType == "" {
			mimeType = "image/png"
		}
		return studio.Image{Data: data, MimeType: mimeType}, nil
	}

	if reason := resp.Candidates[0].FinishReason; reason != "" && reason != "STOP" {
		return studio.Image{}, fmt.Errorf("finished with %s: %w", reason, studio.ErrNoImage)
	}
	return studio.Image{}, studio.ErrNoImage
}

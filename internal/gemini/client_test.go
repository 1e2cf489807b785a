package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"genstudio/internal/studio"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL: srv.URL + "/",
		Model:   "gemini-2.5-flash-image",
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, studio.NewNopLogger())
}

func imageResponse(mimeType string, data []byte) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":"here you go"},{"inlineData":{"mimeType":%q,"data":%q}}]},"finishReason":"STOP"}]}`,
		mimeType, base64.StdEncoding.EncodeToString(data))
}

func TestClient_GenerateImage_Request(t *testing.T) {
	var got generateRequest
	var path, key string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		io.WriteString(w, imageResponse("image/png", []byte("png")))
	})

	aux := &studio.Image{Data: []byte("source"), MimeType: "image/jpeg"}
	_, err := c.GenerateImage(context.Background(), studio.GenerationRequest{
		Prompt:           "make it blue",
		AuxiliaryImage:   aux,
		ResponseModality: studio.ModalityImage,
	})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}

	if path != "/v1beta/models/gemini-2.5-flash-image:generateContent" {
		t.Errorf("path = %q", path)
	}
	if key != "test-key" {
		t.Errorf("api key header = %q", key)
	}
	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 2 {
		t.Fatalf("request contents = %+v, want one content with two parts", got.Contents)
	}
	parts := got.Contents[0].Parts
	if parts[0].Text != "make it blue" || parts[0].InlineData != nil {
		t.Errorf("first part = %+v, want the prompt text", parts[0])
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/jpeg" ||
		parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte("source")) {
		t.Errorf("second part = %+v, want the inline source image", parts[1])
	}
	if m := got.GenerationConfig.ResponseModalities; len(m) != 1 || m[0] != "IMAGE" {
		t.Errorf("responseModalities = %v, want [IMAGE]", m)
	}
}

func TestClient_GenerateImage_TextOnly(t *testing.T) {
	var got generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, imageResponse("image/png", []byte("png")))
	})

	if _, err := c.GenerateImage(context.Background(), studio.GenerationRequest{Prompt: "a cat"}); err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if len(got.Contents[0].Parts) != 1 {
		t.Errorf("parts = %d, want 1", len(got.Contents[0].Parts))
	}
	if m := got.GenerationConfig.ResponseModalities; len(m) != 1 || m[0] != "IMAGE" {
		t.Errorf("responseModalities = %v, want [IMAGE] by default", m)
	}
}

func TestClient_GenerateImage_Responses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantImage string
		wantMime  string
		wantErr   error
		anyErr    bool
	}{
		{
			name:      "inline image",
			status:    http.StatusOK,
			body:      imageResponse("image/webp", []byte("webp bytes")),
			wantImage: "webp bytes",
			wantMime:  "image/webp",
		},
		{
			name:      "missing mime type defaults to png",
			status:    http.StatusOK,
			body:      fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"inlineData":{"data":%q}}]}}]}`, base64.StdEncoding.EncodeToString([]byte("x"))),
			wantImage: "x",
			wantMime:  "image/png",
		},
		{
			name:    "text only",
			status:  http.StatusOK,
			body:    `{"candidates":[{"content":{"parts":[{"text":"I cannot draw that"}]},"finishReason":"STOP"}]}`,
			wantErr: studio.ErrNoImage,
		},
		{
			name:    "blocked prompt",
			status:  http.StatusOK,
			body:    `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantErr: studio.ErrNoImage,
		},
		{
			name:    "no candidates",
			status:  http.StatusOK,
			body:    `{}`,
			wantErr: studio.ErrNoImage,
		},
		{
			name:    "safety finish",
			status:  http.StatusOK,
			body:    `{"candidates":[{"content":{"parts":[]},"finishReason":"IMAGE_SAFETY"}]}`,
			wantErr: studio.ErrNoImage,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"boom"}}`,
			anyErr: true,
		},
		{
			name:   "bad json",
			status: http.StatusOK,
			body:   `{"candidates":`,
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			img, err := c.GenerateImage(context.Background(), studio.GenerationRequest{Prompt: "p"})
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GenerateImage() error = %v, want %v", err, tt.wantErr)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("GenerateImage() expected error")
				}
			default:
				if err != nil {
					t.Fatalf("GenerateImage() error = %v", err)
				}
				if string(img.Data) != tt.wantImage || img.MimeType != tt.wantMime {
					t.Errorf("GenerateImage() = %q (%s), want %q (%s)", img.Data, img.MimeType, tt.wantImage, tt.wantMime)
				}
			}
		})
	}
}

func TestClient_GenerateImage_MissingAPIKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, studio.NewNopLogger())
	_, err := c.GenerateImage(context.Background(), studio.GenerationRequest{Prompt: "p"})
	if !errors.Is(err, studio.ErrMissingAPIKey) {
		t.Errorf("GenerateImage() error = %v, want ErrMissingAPIKey", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times, want 0", calls.Load())
	}
}

func TestClient_GenerateImage_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GenerateImage(ctx, studio.GenerationRequest{Prompt: "p"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GenerateImage() error = %v, want context.Canceled", err)
	}
}

func TestClient_ErrorBodyIsTruncated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, strings.Repeat("e", 10*maxErrorBody))
	})

	_, err := c.GenerateImage(context.Background(), studio.GenerationRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("GenerateImage() expected error")
	}
	if len(err.Error()) > 2*maxErrorBody {
		t.Errorf("error message is %d bytes long", len(err.Error()))
	}
}

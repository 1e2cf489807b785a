// Package imagefile reads user-supplied images from disk.
package imagefile

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"genstudio/internal/studio"
)

// DefaultMaxSize bounds the files Loader accepts.
const DefaultMaxSize = 20 << 20

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// Loader implements studio.ImageLoader for local files.
type Loader struct {
	MaxSize int64
}

var _ studio.ImageLoader = (*Loader)(nil)

// NewLoader returns a Loader with DefaultMaxSize.
func NewLoader() *Loader {
	return &Loader{MaxSize: DefaultMaxSize}
}

// Load reads the file at path. The MIME type is sniffed from the content;
// SVG files, which sniff as text, are recognized by extension.
func (l *Loader) Load(path string) (studio.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return studio.Image{}, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return studio.Image{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return studio.Image{}, fmt.Errorf("%s is a directory", path)
	}
	if l.MaxSize > 0 && info.Size() > l.MaxSize {
		return studio.Image{}, fmt.Errorf("%s is %d bytes, larger than the %d byte limit", path, info.Size(), l.MaxSize)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return studio.Image{}, fmt.Errorf("reading %s: %w", path, err)
	}

	mimeType, err := detect(path, data)
	if err != nil {
		return studio.Image{}, err
	}
	return studio.Image{Data: data, MimeType: mimeType}, nil
}

func detect(path string, data []byte) (string, error) {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	mimeType := http.DetectContentType(head)
	if strings.HasPrefix(mimeType, "image/") {
		return mimeType, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".svg") && strings.Contains(string(head), "<svg") {
		return "image/svg+xml", nil
	}
	return "", fmt.Errorf("%s is not an image (detected %s)", path, mimeType)
}

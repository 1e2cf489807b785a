package imagefile

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.psd"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].pattern != "*.psd" {
			t.Errorf("expected *.psd, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("classifies path vs basename patterns", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.psd", "drafts/old"})
		if m.patterns[0].matchPath {
			t.Error("*.psd should not be a path pattern")
		}
		if !m.patterns[1].matchPath {
			t.Error("drafts/old should be a path pattern")
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name         string
		patterns     []string
		relativePath string
		want         bool
	}{
		{"basename glob in root", []string{"*_thumb.png"}, "cat_thumb.png", true},
		{"basename glob in subdirectory", []string{"*_thumb.png"}, filepath.Join("cats", "cat_thumb.png"), true},
		{"basename glob misses", []string{"*_thumb.png"}, "cat.png", false},
		{"hidden files", defaultIgnorePatterns, ".DS_Store", true},
		{"path pattern", []string{"drafts/*"}, filepath.Join("drafts", "a.png"), true},
		{"path pattern needs full path", []string{"drafts/*"}, filepath.Join("final", "drafts", "a.png"), false},
		{"malformed pattern never matches", []string{"[", "*.gif"}, "a.png", false},
		{"no patterns", nil, "a.png", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewIgnoreMatcher(tt.patterns).Match(tt.relativePath); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
		})
	}
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"b.png",
		"a.JPG",
		"notes.txt",
		".hidden.png",
		filepath.Join("sub", "c.webp"),
		filepath.Join("drafts", "d.png"),
		filepath.Join(".cache", "e.png"),
	}
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, pngHeader, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("# skip drafts\ndrafts\n"), 0644); err != nil {
		t.Fatal(err)
	}
	single := writeFile(t, "single.png", pngHeader)

	got, err := Collect([]string{single, root})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	want := []string{
		single,
		filepath.Join(root, "a.JPG"),
		filepath.Join(root, "b.png"),
		filepath.Join(root, "sub", "c.webp"),
	}
	if !slices.Equal(got, want) {
		t.Errorf("Collect() = %v, want %v", got, want)
	}
}

func TestCollect_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		if _, err := Collect([]string{filepath.Join(t.TempDir(), "nope")}); err == nil {
			t.Error("Collect() expected error for missing path")
		}
	})

	t.Run("directory without images", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Collect([]string{dir}); err == nil {
			t.Error("Collect() expected error for directory without images")
		}
	})
}

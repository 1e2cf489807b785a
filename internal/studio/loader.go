package studio

// ImageLoader reads user-supplied images (edit sources, training images).
type ImageLoader interface {
	// Load reads the image at path and detects its MIME type.
	// Files that are not images are rejected.
	Load(path string) (Image, error)
}

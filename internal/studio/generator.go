package studio

import "context"

// ModalityImage asks the endpoint for image output.
const ModalityImage = "IMAGE"

// GenerationRequest is the payload sent to the external generation endpoint.
// The prompt text always precedes the auxiliary image.
type GenerationRequest struct {
	Prompt           string
	AuxiliaryImage   *Image
	ResponseModality string
}

// ImageGenerator is the external generation endpoint. A response without an
// image is reported as ErrNoImage; a missing credential as ErrMissingAPIKey,
// before any network call is made.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req GenerationRequest) (Image, error)
}

const placeholderMimeType = "image/svg+xml"

var placeholderSVG = []byte(`<svg width="512" height="512" viewBox="0 0 512 512" fill="none" xmlns="http://www.w3.org/2000/svg">
<rect width="512" height="512" fill="#18181b"/>
<circle cx="176" cy="208" r="32" fill="#f43f5e"/>
<circle cx="336" cy="208" r="32" fill="#f43f5e"/>
<path d="M160 352 C 208 304, 304 304, 352 352" stroke="#f43f5e" stroke-width="24" stroke-linecap="round"/>
<text x="256" y="450" text-anchor="middle" style="font-family: monospace; font-size: 28px; fill: #a1a1aa;">Generation failed.</text>
<text x="256" y="480" text-anchor="middle" style="font-family: monospace; font-size: 28px; fill: #a1a1aa;">Try a different prompt.</text>
</svg>
`)

// PlaceholderImage returns the fixed image substituted for a failed generation.
func PlaceholderImage() Image {
	data := make([]byte, len(placeholderSVG))
	copy(data, placeholderSVG)
	return Image{Data: data, MimeType: placeholderMimeType}
}

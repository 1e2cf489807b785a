package studio

import (
	"bytes"
	"context"
	"fmt"
)

// StoreImage puts img into vault and returns a reference to it.
func StoreImage(ctx context.Context, vault MediaVault, img Image) (ImageRef, error) {
	ref := ImageRef{
		Checksum:    img.Checksum(),
		MimeType:    img.MimeType,
		Placeholder: img.IsPlaceholder(),
	}
	if err := vault.PutContent(ctx, ref.Checksum, bytes.NewReader(img.Data), int64(len(img.Data))); err != nil {
		return ImageRef{}, fmt.Errorf("storing image %s: %w", ref.Checksum, err)
	}
	return ref, nil
}

// LoadImage reads the payload ref points at.
func LoadImage(ctx context.Context, vault MediaVault, ref ImageRef) (Image, error) {
	var buf bytes.Buffer
	if err := vault.GetContent(ctx, ref.Checksum, &buf); err != nil {
		return Image{}, fmt.Errorf("loading image %s: %w", ref.Checksum, err)
	}
	return Image{Data: buf.Bytes(), MimeType: ref.MimeType}, nil
}

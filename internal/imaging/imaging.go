// Package imaging reads image files, validates that they decode as a
// supported format, and computes their content identity.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"os"

	// Registered format decoders. Only headers are decoded here; the
	// raw bytes travel to the encoder service as-is.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	clierrors "github.com/clipgrep/clipgrep/internal/errors"
)

// Image is a validated image file: its raw bytes plus the decoded
// header. Pixels are never decoded in-process; the encoder service
// consumes the raw bytes.
type Image struct {
	// Path is the absolute source file path.
	Path string

	// Format is the detected format name ("jpeg", "png", "webp").
	Format string

	// Width and Height come from the decoded header.
	Width  int
	Height int

	// Data is the full raw file content.
	Data []byte
}

// ReadImage reads path and validates that its content decodes as a
// supported image format. Returns an error for unreadable files and
// for content that is not an image.
func ReadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("not a decodable image: %w", err)
	}

	return &Image{
		Path:   path,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Data:   data,
	}, nil
}

// Hash computes the content digest of raw file bytes. It is an
// equality oracle for duplicate and rename detection, not a security
// primitive.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile reads path and computes its content digest. Read failures
// are per-file warnings in the error taxonomy, never run-fatal.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", clierrors.HashError(path, err)
	}
	return Hash(data), nil
}

package intake

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
)

// ErrInvalidInput is returned when a selected file cannot be used as an
// image: empty payload, oversized payload, or undecodable image data.
var ErrInvalidInput = errors.New("invalid image input")

// Limit file size to 10MB, matching what the analysis service accepts.
const maxImageBytes = 10 * 1024 * 1024

// PreviewHandle holds a selected image: the original binary payload for
// submission plus the decoded properties a preview needs. It is immutable
// after SelectImage returns.
type PreviewHandle struct {
	data     []byte
	filename string
	format   string
	width    int
	height   int
}

// SelectImage validates a user-selected file and wraps it in a
// PreviewHandle. The raw bytes must decode as a GIF, JPEG, or PNG image.
func SelectImage(raw []byte, filename string) (*PreviewHandle, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if len(raw) > maxImageBytes {
		return nil, fmt.Errorf("%w: file too large (max 10MB)", ErrInvalidInput)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: not a decodable image: %v", ErrInvalidInput, err)
	}

	if filename == "" {
		filename = "image." + format
	}

	slog.Info("Image selected", "filename", filename, "format", format, "width", cfg.Width, "height", cfg.Height, "size_bytes", len(raw))

	return &PreviewHandle{
		data:     raw,
		filename: filename,
		format:   format,
		width:    cfg.Width,
		height:   cfg.Height,
	}, nil
}

// Data returns the original binary payload for submission.
func (h *PreviewHandle) Data() []byte { return h.data }

// Filename returns the name the image was selected under.
func (h *PreviewHandle) Filename() string { return h.filename }

// Format returns the decoded image format ("jpeg", "png", "gif").
func (h *PreviewHandle) Format() string { return h.format }

// MIMEType returns the content type for multipart submission.
func (h *PreviewHandle) MIMEType() string { return "image/" + h.format }

// Width returns the decoded image width in pixels.
func (h *PreviewHandle) Width() int { return h.width }

// Height returns the decoded image height in pixels.
func (h *PreviewHandle) Height() int { return h.height }

// Size returns the payload size in bytes.
func (h *PreviewHandle) Size() int { return len(h.data) }

// ContentName returns a stable content-addressed filename, useful when the
// original name is untrusted or missing.
func (h *PreviewHandle) ContentName() string {
	ext := filepath.Ext(h.filename)
	if ext == "" {
		ext = "." + h.format
	}
	return fmt.Sprintf("%x%s", md5.Sum(h.data), ext)
}

package publish

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
)

// MaxBytes is the largest payload accepted for upload.
const MaxBytes = 25 * 1024 * 1024

const jpegQuality = 92

var (
	ErrEmptyImage    = errors.New("image is empty")
	ErrHTMLPayload   = errors.New("payload is HTML, not an image; check sharing permissions")
	ErrImageTooLarge = errors.New("image exceeds upload size limit")
	ErrUnreadable    = errors.New("image could not be decoded")
)

// Format describes a recognised image container.
type Format struct {
	Name string
	MIME string
	Ext  string
}

var magics = []struct {
	Format
	sig []byte
}{
	{Format{"jpeg", "image/jpeg", ".jpg"}, []byte{0xff, 0xd8, 0xff}},
	{Format{"png", "image/png", ".png"}, []byte{0x89, 0x50, 0x4e, 0x47}},
	{Format{"gif", "image/gif", ".gif"}, []byte{0x47, 0x49, 0x46, 0x38}},
	{Format{"webp", "image/webp", ".webp"}, []byte("RIFF")},
}

// Sniff identifies an image by its leading bytes.
func Sniff(b []byte) (Format, bool) {
	for _, m := range magics {
		if !bytes.HasPrefix(b, m.sig) {
			continue
		}
		if m.Name == "webp" && (len(b) < 12 || string(b[8:12]) != "WEBP") {
			continue
		}
		return m.Format, true
	}
	return Format{}, false
}

// IsHTML reports whether a payload looks like an HTML page.
func IsHTML(b []byte) bool {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	return len(trimmed) >= 6 && trimmed[0] == '<' && (trimmed[1] == 'h' || trimmed[1] == 'H' || trimmed[1] == '!')
}

// NormalizeJPEG returns the payload as a JPEG. JPEG input is passed through;
// other formats are decoded, flattened onto white and re-encoded. Animated
// images keep their first frame.
func NormalizeJPEG(b []byte) ([]byte, error) {
	switch {
	case len(b) == 0:
		return nil, ErrEmptyImage
	case len(b) > MaxBytes:
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(b))
	case IsHTML(b):
		return nil, ErrHTMLPayload
	}

	if f, ok := Sniff(b); ok && f.Name == "jpeg" {
		return b, nil
	}

	src, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode %s as jpeg: %w", format, err)
	}
	return buf.Bytes(), nil
}

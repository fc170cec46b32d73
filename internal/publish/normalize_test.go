package publish

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func pngWithTransparency(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	// every other pixel stays fully transparent
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, "jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0d}, "png"},
		{"gif", []byte("GIF89a"), "gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{"riff but not webp", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), ""},
		{"html", []byte("<html>"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := Sniff(tt.data)
			if tt.expected == "" {
				if ok {
					t.Errorf("Expected no match, got %s", f.Name)
				}
				return
			}
			if !ok || f.Name != tt.expected {
				t.Errorf("Expected %s, got %v (%v)", tt.expected, f.Name, ok)
			}
		})
	}
}

func TestNormalizeJPEG(t *testing.T) {
	t.Run("jpeg passes through", func(t *testing.T) {
		in := jpegBytes(t)
		out, err := NormalizeJPEG(in)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !bytes.Equal(in, out) {
			t.Error("Expected JPEG input to be returned unchanged")
		}
	})

	t.Run("png flattened on white", func(t *testing.T) {
		out, err := NormalizeJPEG(pngWithTransparency(t))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if f, ok := Sniff(out); !ok || f.Name != "jpeg" {
			t.Fatal("Expected JPEG output")
		}
		img, err := jpeg.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("Failed to decode output: %v", err)
		}
		r, g, b, _ := img.At(3, 3).RGBA()
		if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
			t.Errorf("Expected transparent pixel to become white, got %d,%d,%d", r>>8, g>>8, b>>8)
		}
	})

	errs := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, ErrEmptyImage},
		{"html", []byte("<!DOCTYPE html><html></html>"), ErrHTMLPayload},
		{"garbage", []byte("definitely not an image"), ErrUnreadable},
		{"too large", make([]byte, MaxBytes+1), ErrImageTooLarge},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NormalizeJPEG(tt.data); !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
		})
	}
}

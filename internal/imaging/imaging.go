// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging generates thumbnails for image assets. Uploaded,
// AI-generated, and proxy-downloaded images all pass through here so the
// asset grid can load small previews instead of full-size originals.
// JPEG, PNG, GIF, and WebP sources are supported; WebP decodes via
// x/image but always re-encodes to JPEG or PNG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	// ThumbWidth is the target width of generated thumbnails in pixels.
	ThumbWidth = 320

	// thumbJPEGQuality is the JPEG quality used for thumbnail encoding.
	thumbJPEGQuality = 80
)

// Thumbnail holds one generated thumbnail ready for upload.
type Thumbnail struct {
	Width       int    // Actual output width
	Height      int    // Actual output height
	Data        []byte // Encoded image bytes
	ContentType string // "image/jpeg" or "image/png"
}

// GenerateThumbnail decodes the source image and scales it down to
// ThumbWidth, preserving aspect ratio. Sources narrower than ThumbWidth
// are re-encoded at their original size rather than upscaled. Images with
// transparency keep it by encoding to PNG; everything else becomes JPEG.
func GenerateThumbnail(original []byte, contentType string) (*Thumbnail, error) {
	src, err := decode(original, contentType)
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}

	bounds := src.Bounds()
	targetWidth := ThumbWidth
	if bounds.Dx() <= targetWidth {
		// Cap at original width to avoid upscaling.
		targetWidth = bounds.Dx()
	}
	targetHeight := bounds.Dy() * targetWidth / bounds.Dx()
	if targetHeight < 1 {
		targetHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	data, outType, err := encode(dst, hasAlpha(dst))
	if err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}

	return &Thumbnail{
		Width:       targetWidth,
		Height:      targetHeight,
		Data:        data,
		ContentType: outType,
	}, nil
}

// decode picks the decoder by declared content type, falling back to
// sniffing via image.Decode when the type is unknown or lies.
func decode(data []byte, contentType string) (image.Image, error) {
	r := bytes.NewReader(data)
	switch contentType {
	case "image/jpeg":
		return jpeg.Decode(r)
	case "image/png":
		return png.Decode(r)
	case "image/gif":
		return gif.Decode(r)
	case "image/webp":
		return webp.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}

func encode(img image.Image, alpha bool) ([]byte, string, error) {
	var buf bytes.Buffer
	if alpha {
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: thumbJPEGQuality}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/jpeg", nil
}

// hasAlpha samples the image for any non-opaque pixel. Sampling every
// fourth pixel keeps this cheap on large images.
func hasAlpha(img *image.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 4 {
		for x := b.Min.X; x < b.Max.X; x += 4 {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}

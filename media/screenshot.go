package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"

	"github.com/disintegration/imaging"
)

const screenshotQuality = 80

// encodeScreenshot decodes a captured frame, shrinks it to maxWidth (keeping aspect ratio) and
// re-encodes it as JPEG. maxWidth <= 0 keeps the original size.
func encodeScreenshot(frame []byte, maxWidth int) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrNoFrame
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(screenshotQuality)); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}

	return buf.Bytes(), nil
}

package vision

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"os"

	"golang.org/x/image/draw"
)

const (
	cropMargin  = 0.1 // grow the pylon box by 10% on every side
	jpegQuality = 90
)

// LoadImage decodes an image file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// SaveJPEG encodes img to path.
func SaveJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return f.Close()
}

// CropForOCR cuts the region of det out of the captured image and scales it
// to the OCR input size. det is in frame pixels (frameW x frameH); the source
// image may be larger, as the camera captures at its native resolution.
func CropForOCR(src image.Image, det Detection, frameW, frameH int) image.Image {
	b := src.Bounds()
	sx := float64(b.Dx()) / float64(frameW)
	sy := float64(b.Dy()) / float64(frameH)

	mx := float64(det.W) * cropMargin
	my := float64(det.H) * cropMargin
	r := image.Rect(
		b.Min.X+int((float64(det.X1)-mx)*sx),
		b.Min.Y+int((float64(det.Y1)-my)*sy),
		b.Min.X+int((float64(det.X2)+mx)*sx),
		b.Min.Y+int((float64(det.Y2)+my)*sy),
	).Intersect(b)

	dst := image.NewRGBA(image.Rect(0, 0, OCRSize, OCRSize))
	if r.Empty() {
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), src, r, draw.Src, nil)
	return dst
}

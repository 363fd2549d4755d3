package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"

	"github.com/ironsheep/occlusion-mcp/internal/detection"
	"github.com/ironsheep/occlusion-mcp/internal/geometry"
	"github.com/ironsheep/occlusion-mcp/internal/imaging"
)

// TesseractOracle detects words with Tesseract.
type TesseractOracle struct {
	loader    detection.ImageLoader
	language  string
	grayscale bool
	logger    *zap.SugaredLogger
}

// NewTesseractOracle creates a Tesseract oracle that reads images through
// loader. language is a Tesseract code such as "eng". When grayscale is set
// the image is converted before recognition.
func NewTesseractOracle(loader detection.ImageLoader, language string, grayscale bool, logger *zap.SugaredLogger) *TesseractOracle {
	if language == "" {
		language = "eng"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &TesseractOracle{
		loader:    loader,
		language:  language,
		grayscale: grayscale,
		logger:    logger.Named("tesseract"),
	}
}

// Detect runs word-level recognition over the image at imagePath.
//
// Tesseract reports confidence on a 0-100 scale; it is rescaled to [0, 1]
// so the same thresholds apply to every oracle.
func (o *TesseractOracle) Detect(ctx context.Context, imagePath string) ([]detection.Detection, error) {
	img, err := o.loader.Load(imagePath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var src image.Image = img
	if o.grayscale {
		src = imaging.PrepareForOCR(img)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(o.language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	detections := fromBoundingBoxes(boxes)
	o.logger.Debugw("tesseract detect", "path", imagePath, "words", len(detections))
	return detections, nil
}

// fromBoundingBoxes converts Tesseract word boxes, skipping empty words.
func fromBoundingBoxes(boxes []gosseract.BoundingBox) []detection.Detection {
	detections := make([]detection.Detection, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		b := geometry.Box{
			MinX: float64(box.Box.Min.X),
			MinY: float64(box.Box.Min.Y),
			MaxX: float64(box.Box.Max.X),
			MaxY: float64(box.Box.Max.Y),
		}
		detections = append(detections, detection.Detection{
			Polygon:    b.Polygon(),
			Confidence: box.Confidence / 100.0,
			Text:       box.Word,
		})
	}
	return detections
}

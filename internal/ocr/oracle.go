package ocr

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ironsheep/occlusion-mcp/internal/detection"
)

// Engine names accepted by NewOracle.
const (
	EngineEasyOCR   = "easyocr"
	EngineTesseract = "tesseract"
)

// OracleConfig selects and configures an oracle.
type OracleConfig struct {
	Engine    string
	Language  string
	VendorDir string
	Loader    detection.ImageLoader
	Locator   RuntimeLocator
	Logger    *zap.SugaredLogger
}

// NewOracle returns the oracle named by cfg.Engine. An empty engine selects
// EasyOCR.
func NewOracle(cfg OracleConfig) (detection.Oracle, error) {
	switch cfg.Engine {
	case "", EngineEasyOCR:
		if cfg.Locator == nil {
			return nil, fmt.Errorf("easyocr oracle requires a runtime locator")
		}
		return NewScriptOracle(cfg.Locator, cfg.VendorDir, cfg.Language, cfg.Logger), nil
	case EngineTesseract:
		if cfg.Loader == nil {
			return nil, fmt.Errorf("tesseract oracle requires an image loader")
		}
		return NewTesseractOracle(cfg.Loader, cfg.Language, true, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
	}
}

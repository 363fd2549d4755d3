// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ironsheep/occlusion-mcp/internal/detection"
	"github.com/ironsheep/occlusion-mcp/internal/imaging"
	"github.com/ironsheep/occlusion-mcp/internal/ocr"
)

// OCR engine names.
const (
	EngineEasyOCR   = ocr.EngineEasyOCR
	EngineTesseract = ocr.EngineTesseract
)

const appDirName = "occlusion-mcp"

// Config holds every tunable of the server and CLI.
type Config struct {
	LogLevel string

	// VendorDir is the fixed install target for runtime dependencies.
	VendorDir string

	// Python is an explicit interpreter, tried before the platform defaults.
	Python string

	OCREngine   string
	OCRLanguage string

	Cluster detection.ClusterOptions

	ImageCacheSize int
	CoverColor     string
}

// Load reads a .env file if present, then the OCCLUSION_* environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:    strings.TrimSpace(os.Getenv("OCCLUSION_LOG_LEVEL")),
		Python:      strings.TrimSpace(os.Getenv("OCCLUSION_PYTHON")),
		OCREngine:   strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("OCCLUSION_OCR_ENGINE")), EngineEasyOCR)),
		CoverColor:  firstNonEmpty(strings.TrimSpace(os.Getenv("OCCLUSION_COVER_COLOR")), imaging.DefaultCoverColor),
		Cluster:     detection.DefaultClusterOptions(),
		OCRLanguage: strings.TrimSpace(os.Getenv("OCCLUSION_OCR_LANGUAGE")),
	}

	vendor, err := resolveVendorDir(strings.TrimSpace(os.Getenv("OCCLUSION_VENDOR_DIR")))
	if err != nil {
		return nil, err
	}
	cfg.VendorDir = vendor

	if cfg.Cluster.MinConfidence, err = floatEnv("OCCLUSION_MIN_CONFIDENCE", cfg.Cluster.MinConfidence); err != nil {
		return nil, err
	}
	if cfg.Cluster.OverlapThreshold, err = floatEnv("OCCLUSION_OVERLAP_THRESHOLD", cfg.Cluster.OverlapThreshold); err != nil {
		return nil, err
	}
	if cfg.ImageCacheSize, err = intEnv("OCCLUSION_IMAGE_CACHE_SIZE", imaging.DefaultCacheSize); err != nil {
		return nil, err
	}

	if cfg.OCRLanguage == "" {
		cfg.OCRLanguage = DefaultLanguage(cfg.OCREngine)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch c.OCREngine {
	case EngineEasyOCR, EngineTesseract:
	default:
		return fmt.Errorf("unknown OCR engine %q (want %s or %s)", c.OCREngine, EngineEasyOCR, EngineTesseract)
	}
	if c.Cluster.MinConfidence < 0 || c.Cluster.MinConfidence >= 1 {
		return fmt.Errorf("min confidence must be in [0, 1), got %v", c.Cluster.MinConfidence)
	}
	if c.Cluster.OverlapThreshold < 0 || c.Cluster.OverlapThreshold >= 1 {
		return fmt.Errorf("overlap threshold must be in [0, 1), got %v", c.Cluster.OverlapThreshold)
	}
	if c.ImageCacheSize <= 0 {
		return fmt.Errorf("image cache size must be positive, got %d", c.ImageCacheSize)
	}
	if c.VendorDir == "" {
		return fmt.Errorf("vendor directory must be set")
	}
	return nil
}

// DefaultLanguage returns the language code each engine expects for English.
func DefaultLanguage(engine string) string {
	if engine == EngineTesseract {
		return "eng"
	}
	return "en"
}

func resolveVendorDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	return filepath.Join(base, appDirName, "vendor"), nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

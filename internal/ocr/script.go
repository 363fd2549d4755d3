package ocr

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ironsheep/occlusion-mcp/internal/detection"
	"github.com/ironsheep/occlusion-mcp/internal/geometry"
	"github.com/ironsheep/occlusion-mcp/internal/pyenv"
)

//go:embed scripts/easyocr_detect.py
var easyOCRScript string

// exitMissingPackage is the script's exit code when easyocr cannot be imported.
const exitMissingPackage = 3

// RuntimeLocator finds the Python executable. *pyenv.Locator satisfies it.
type RuntimeLocator interface {
	Find(ctx context.Context) (string, error)
}

// ScriptCommandFunc builds the detection process.
type ScriptCommandFunc func(ctx context.Context, runtime string, args ...string) *exec.Cmd

// ScriptOracle detects text with EasyOCR in a Python subprocess.
type ScriptOracle struct {
	locator   RuntimeLocator
	vendorDir string
	language  string
	command   ScriptCommandFunc
	logger    *zap.SugaredLogger
}

// NewScriptOracle creates an EasyOCR oracle. vendorDir is put on PYTHONPATH
// so packages installed by the installer are importable.
func NewScriptOracle(locator RuntimeLocator, vendorDir, language string, logger *zap.SugaredLogger) *ScriptOracle {
	if language == "" {
		language = "en"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ScriptOracle{
		locator:   locator,
		vendorDir: vendorDir,
		language:  language,
		command:   exec.CommandContext,
		logger:    logger.Named("easyocr"),
	}
}

type scriptDetection struct {
	Box        [][2]float64 `json:"box"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
}

// Detect runs the embedded EasyOCR script over imagePath.
//
// A missing runtime or missing easyocr package is reported as
// detection.ErrOracleUnavailable.
func (o *ScriptOracle) Detect(ctx context.Context, imagePath string) ([]detection.Detection, error) {
	runtime, err := o.locator.Find(ctx)
	if err != nil {
		if errors.Is(err, pyenv.ErrRuntimeNotFound) {
			return nil, fmt.Errorf("%w: %v", detection.ErrOracleUnavailable, err)
		}
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := o.command(ctx, runtime, "-c", easyOCRScript, o.language, imagePath)
	cmd.Env = pyenv.Env(o.vendorDir)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == exitMissingPackage {
			return nil, fmt.Errorf("%w: %s", detection.ErrOracleUnavailable, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("easyocr failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	detections, err := parseScriptOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	o.logger.Debugw("easyocr detect", "path", imagePath, "runtime", runtime, "detections", len(detections))
	return detections, nil
}

func parseScriptOutput(data []byte) ([]detection.Detection, error) {
	var raw []scriptDetection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode easyocr output: %w", err)
	}
	return lo.Map(raw, func(d scriptDetection, _ int) detection.Detection {
		return detection.Detection{
			Polygon: lo.Map(d.Box, func(p [2]float64, _ int) geometry.Point {
				return geometry.Point{X: p[0], Y: p[1]}
			}),
			Confidence: d.Confidence,
			Text:       d.Text,
		}
	}), nil
}

package detection

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	// ErrNoImagePath is returned when auto-cover is requested without an image.
	ErrNoImagePath = errors.New("no image path provided")

	// ErrOracleUnavailable is returned when no detection oracle is configured
	// or the configured one cannot run.
	ErrOracleUnavailable = errors.New("text detection oracle not available")
)

// Oracle detects text regions in an image file. Implementations are treated
// as black boxes; see package ocr.
type Oracle interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, imagePath string) ([]Detection, error)

// Detect calls f.
func (f OracleFunc) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	return f(ctx, imagePath)
}

// ImageLoader loads and decodes an image. imaging.ImageCache satisfies it.
type ImageLoader interface {
	Load(path string) (image.Image, error)
}

// Result is the single message a background auto-cover call delivers.
type Result struct {
	Path  string `json:"path"`
	Rects []Rect `json:"rects"`
	Err   error  `json:"-"`
}

// Engine runs the oracle over an image and clusters its detections.
type Engine struct {
	oracle   Oracle
	loader   ImageLoader
	defaults ClusterOptions
	logger   *zap.SugaredLogger
}

// NewEngine creates an Engine. A nil oracle is allowed; every call then fails
// with ErrOracleUnavailable, which lets the editor start before the runtime
// dependencies are installed.
func NewEngine(oracle Oracle, loader ImageLoader, defaults ClusterOptions, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		oracle:   oracle,
		loader:   loader,
		defaults: defaults,
		logger:   logger.Named("detection"),
	}
}

// AutoCover detects text in the image at path and returns merged occlusion
// rects. Zero-valued fields in opts fall back to the engine defaults.
//
// An image with no confident text yields an empty slice and no error.
func (e *Engine) AutoCover(ctx context.Context, path string, opts ClusterOptions) ([]Rect, error) {
	if path == "" {
		return nil, ErrNoImagePath
	}
	if e.oracle == nil {
		return nil, ErrOracleUnavailable
	}
	if e.loader != nil {
		if _, err := e.loader.Load(path); err != nil {
			return nil, fmt.Errorf("could not load image from path %s: %w", path, err)
		}
	}

	detections, err := e.oracle.Detect(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("text detection failed: %w", err)
	}

	opts = e.withDefaults(opts)
	rects := Cluster(detections, opts)

	e.logger.Debugw("auto cover complete",
		"path", path,
		"detections", len(detections),
		"kept", lo.CountBy(detections, opts.keeps),
		"rects", len(rects),
		"min_confidence", opts.MinConfidence,
		"overlap_threshold", opts.OverlapThreshold,
	)
	return rects, nil
}

// Start runs AutoCover on a background goroutine. The returned channel
// receives exactly one Result and is then closed.
//
// A panic inside the oracle or clustering is recovered and delivered as
// Result.Err, so callers never see a crash from the worker.
func (e *Engine) Start(ctx context.Context, path string, opts ClusterOptions) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		res := Result{Path: path}
		defer func() {
			if r := recover(); r != nil {
				e.logger.Errorw("auto cover worker panicked", "path", path, "panic", r)
				res.Rects = nil
				res.Err = fmt.Errorf("an error occurred during text recognition: %v", r)
			}
			out <- res
		}()
		res.Rects, res.Err = e.AutoCover(ctx, path, opts)
	}()
	return out
}

func (e *Engine) withDefaults(opts ClusterOptions) ClusterOptions {
	if opts.MinConfidence == 0 {
		opts.MinConfidence = e.defaults.MinConfidence
	}
	if opts.OverlapThreshold == 0 {
		opts.OverlapThreshold = e.defaults.OverlapThreshold
	}
	return opts
}

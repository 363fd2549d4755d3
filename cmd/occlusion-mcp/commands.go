package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/occlusion-mcp/internal/config"
	"github.com/ironsheep/occlusion-mcp/internal/detection"
	"github.com/ironsheep/occlusion-mcp/internal/imaging"
	"github.com/ironsheep/occlusion-mcp/internal/installer"
	"github.com/ironsheep/occlusion-mcp/internal/logging"
	"github.com/ironsheep/occlusion-mcp/internal/ocr"
	"github.com/ironsheep/occlusion-mcp/internal/pyenv"
	"github.com/ironsheep/occlusion-mcp/internal/server"
)

// components is everything a command needs, built from one Config.
type components struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	cache     *imaging.ImageCache
	installer *installer.Orchestrator
	engine    *detection.Engine
}

// setup loads the configuration, applies command-line overrides and wires
// the packages together.
func setup(c *cli.Context) (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v := c.String(flagLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String(flagVendorDir); v != "" {
		cfg.VendorDir = v
	}
	if v := c.String(flagPython); v != "" {
		cfg.Python = v
	}
	if v := c.String(flagEngine); v != "" {
		cfg.OCREngine = v
		cfg.OCRLanguage = config.DefaultLanguage(v)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New("occlusion", cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	cache := imaging.NewImageCache(cfg.ImageCacheSize)
	locator := pyenv.NewLocator(cfg.Python)

	oracle, err := ocr.NewOracle(ocr.OracleConfig{
		Engine:    cfg.OCREngine,
		Language:  cfg.OCRLanguage,
		VendorDir: cfg.VendorDir,
		Loader:    cache,
		Locator:   locator,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	deps := installer.New(installer.Options{
		Locator:   locator,
		TargetDir: cfg.VendorDir,
		OnFinished: func(s installer.Summary) {
			logger.Infow("dependency install finished",
				"completed", s.Completed,
				"total", s.Total,
				"failures", len(multierr.Errors(s.Advisory())),
			)
		},
		Logger: logger,
	})

	return &components{
		cfg:       cfg,
		logger:    logger,
		cache:     cache,
		installer: deps,
		engine:    detection.NewEngine(oracle, cache, cfg.Cluster, logger),
	}, nil
}

func serveAction(c *cli.Context) error {
	comp, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = comp.logger.Sync() }()

	comp.logger.Debugw("starting server",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
		"engine", comp.cfg.OCREngine,
		"vendor_dir", comp.cfg.VendorDir,
	)

	srv := server.New(server.Options{
		Engine:     comp.engine,
		Installer:  comp.installer,
		Cache:      comp.cache,
		CoverColor: comp.cfg.CoverColor,
		Version:    Version,
		Logger:     comp.logger,
	})
	if err := srv.Run(c.Context); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func depsAction(c *cli.Context) error {
	comp, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = comp.logger.Sync() }()

	missing := comp.installer.Missing()
	batch, ready := comp.installer.CheckAndInstall(c.Context)
	if ready {
		pterm.Success.Println("All text-recognition dependencies are installed.")
		return nil
	}

	bar, err := pterm.DefaultProgressbar.
		WithTotal(len(missing) * 100).
		WithTitle("Installing dependencies").
		WithRemoveWhenDone(false).
		Start()
	if err != nil {
		return err
	}

	var last string
	summary := installer.Drive(batch, func(u installer.Update) {
		if u.Value > bar.Current {
			bar.Add(u.Value - bar.Current)
		}
		if u.Package != "" {
			bar.UpdateTitle(u.Package + ": " + u.Phase.String())
		}
		last = u.Message
	})
	_, _ = bar.Stop()

	if summary.Err != nil {
		return cli.Exit(fmt.Sprintf("Failed to install dependencies: %v", summary.Err), 1)
	}

	for _, adv := range multierr.Errors(summary.Advisory()) {
		var pkgErr *installer.PackageError
		if errors.As(adv, &pkgErr) {
			pterm.Warning.Printfln("%s\n%s", pkgErr.Error(), pkgErr.Diagnostic)
		}
	}
	pterm.Success.Println(last)
	return nil
}

func coverAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("usage: occlusion-mcp cover <image>", 2)
	}

	comp, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = comp.logger.Sync() }()

	rects, err := comp.engine.AutoCover(c.Context, path, detection.ClusterOptions{
		MinConfidence:    c.Float64(flagMinConfidence),
		OverlapThreshold: c.Float64(flagOverlapThreshold),
	})
	if errors.Is(err, detection.ErrOracleUnavailable) {
		return cli.Exit(fmt.Sprintf("%v\nRun 'occlusion-mcp deps' to install the text-recognition packages.", err), 1)
	}
	if err != nil {
		return err
	}

	if out := c.String(flagPreview); out != "" {
		if err := writePreview(comp, path, out, c.String(flagColor), rects); err != nil {
			return err
		}
		comp.logger.Infow("preview written", "path", out, "rects", len(rects))
	}

	info, err := imaging.LoadImageInfo(comp.cache, path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(coverOutput{Path: path, ImageInfo: *info, Rects: rects})
}

type coverOutput struct {
	Path string `json:"path"`
	imaging.ImageInfo
	Rects []detection.Rect `json:"rects"`
}

func writePreview(comp *components, path, out, hex string, rects []detection.Rect) error {
	fill, err := imaging.ParseFill(lo.Ternary(hex != "", hex, comp.cfg.CoverColor))
	if err != nil {
		return err
	}
	img, err := comp.cache.Load(path)
	if err != nil {
		return err
	}
	masks := lo.Map(rects, func(r detection.Rect, _ int) image.Rectangle { return r.Rectangle() })
	if err := imaging.SavePNG(out, imaging.RenderCover(img, masks, fill, 1)); err != nil {
		return err
	}
	// out may be the source image itself.
	comp.cache.Evict(out)
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	flagLogLevel         = "log-level"
	flagVendorDir        = "vendor-dir"
	flagPython           = "python"
	flagEngine           = "engine"
	flagPreview          = "preview"
	flagMinConfidence    = "min-confidence"
	flagOverlapThreshold = "overlap-threshold"
	flagColor            = "color"
)

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "occlusion-mcp %s\n", Version)
		fmt.Fprintf(c.App.Writer, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(c.App.Writer, "  Git commit: %s\n", GitCommit)
	}

	return &cli.App{
		Name:            "occlusion-mcp",
		Usage:           "text detection and dependency setup for image occlusion cards",
		Version:         Version,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log level (debug, info, warn, error); overrides OCCLUSION_LOG_LEVEL",
			},
			&cli.StringFlag{
				Name:  flagVendorDir,
				Usage: "install runtime packages into `DIR`; overrides OCCLUSION_VENDOR_DIR",
			},
			&cli.StringFlag{
				Name:  flagPython,
				Usage: "Python interpreter to try first; overrides OCCLUSION_PYTHON",
			},
			&cli.StringFlag{
				Name:  flagEngine,
				Usage: "OCR engine (easyocr or tesseract); overrides OCCLUSION_OCR_ENGINE",
			},
		},
		// Running without a command starts the MCP server, which is how MCP
		// clients launch the binary.
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the MCP server over stdin/stdout",
				Action: serveAction,
			},
			{
				Name:   "deps",
				Usage:  "check for and install the text-recognition runtime packages",
				Action: depsAction,
			},
			{
				Name:      "cover",
				Usage:     "detect text in an image and print occlusion rects as JSON",
				ArgsUsage: "<image>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagPreview,
						Usage: "also write the masked image to `FILE` as PNG",
					},
					&cli.Float64Flag{
						Name:  flagMinConfidence,
						Usage: "confidence cutoff; detections at or below it are dropped",
					},
					&cli.Float64Flag{
						Name:  flagOverlapThreshold,
						Usage: "overlap fraction of the smaller box needed to merge",
					},
					&cli.StringFlag{
						Name:  flagColor,
						Usage: "preview mask color as #RRGGBB",
					},
				},
				Action: coverAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/samber/lo"

	"github.com/ironsheep/occlusion-mcp/internal/detection"
	"github.com/ironsheep/occlusion-mcp/internal/imaging"
	"github.com/ironsheep/occlusion-mcp/internal/installer"
)

var (
	errNoEngine    = errors.New("auto-cover is not configured")
	errNoInstaller = errors.New("dependency installer is not configured")
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "occlusion_auto_cover").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	// Meta carries the MCP request metadata, including the progress token.
	Meta struct {
		ProgressToken interface{} `json:"progressToken,omitempty"`
	} `json:"_meta"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params)
	if err != nil {
		s.logger.Infow("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, params ToolCallParams) (interface{}, error) {
	switch params.Name {
	case "occlusion_auto_cover":
		return s.handleAutoCover(ctx, params.Arguments)
	case "occlusion_preview":
		return s.handlePreview(ctx, params.Arguments)
	case "dependencies_status":
		return s.handleDependenciesStatus()
	case "dependencies_install":
		return s.handleDependenciesInstall(ctx, params)
	default:
		return nil, fmt.Errorf("unknown tool: %s", params.Name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments; empty arguments leave v untouched.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Detection Handlers ===

type autoCoverArgs struct {
	Path             string  `json:"path"`
	MinConfidence    float64 `json:"min_confidence"`
	OverlapThreshold float64 `json:"overlap_threshold"`
}

func (a autoCoverArgs) options() detection.ClusterOptions {
	return detection.ClusterOptions{
		MinConfidence:    a.MinConfidence,
		OverlapThreshold: a.OverlapThreshold,
	}
}

type autoCoverResult struct {
	Path string `json:"path"`
	imaging.ImageInfo
	Rects []detection.Rect `json:"rects"`
	Count int              `json:"count"`
}

func (s *Server) autoCover(ctx context.Context, args autoCoverArgs) ([]detection.Rect, error) {
	if s.engine == nil {
		return nil, errNoEngine
	}
	res := <-s.engine.Start(ctx, args.Path, args.options())
	return res.Rects, res.Err
}

func (s *Server) handleAutoCover(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args autoCoverArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	rects, err := s.autoCover(ctx, args)
	if err != nil {
		return nil, err
	}
	// The engine decoded the image through the same cache.
	info, err := imaging.LoadImageInfo(s.cache, args.Path)
	if err != nil {
		return nil, err
	}
	return &autoCoverResult{Path: args.Path, ImageInfo: *info, Rects: rects, Count: len(rects)}, nil
}

type previewArgs struct {
	autoCoverArgs
	Output  string           `json:"output"`
	Color   string           `json:"color"`
	Opacity *float64         `json:"opacity"`
	Rects   []detection.Rect `json:"rects"`
}

type previewResult struct {
	Output string           `json:"output"`
	Rects  []detection.Rect `json:"rects"`
	Count  int              `json:"count"`
}

func (s *Server) handlePreview(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args previewArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Path == "" {
		return nil, detection.ErrNoImagePath
	}
	if args.Output == "" {
		return nil, errors.New("no output path provided")
	}

	fill, err := imaging.ParseFill(lo.Ternary(args.Color != "", args.Color, s.coverColor))
	if err != nil {
		return nil, err
	}
	opacity := 1.0
	if args.Opacity != nil {
		opacity = *args.Opacity
	}

	rects := args.Rects
	if rects == nil {
		if rects, err = s.autoCover(ctx, args.autoCoverArgs); err != nil {
			return nil, err
		}
	}

	img, err := s.cache.Load(args.Path)
	if err != nil {
		return nil, err
	}

	covered := imaging.RenderCover(img, lo.Map(rects, func(r detection.Rect, _ int) image.Rectangle {
		return r.Rectangle()
	}), fill, opacity)
	if err := imaging.SavePNG(args.Output, covered); err != nil {
		return nil, err
	}
	s.cache.Evict(args.Output)

	return &previewResult{Output: args.Output, Rects: rects, Count: len(rects)}, nil
}

// === Dependency Handlers ===

type dependenciesStatusResult struct {
	Ready    bool     `json:"ready"`
	Packages []string `json:"packages"`
	Missing  []string `json:"missing"`
}

func installNames(specs []installer.PackageSpec) []string {
	return lo.Map(specs, func(p installer.PackageSpec, _ int) string { return p.InstallName })
}

func (s *Server) handleDependenciesStatus() (interface{}, error) {
	if s.deps == nil {
		return nil, errNoInstaller
	}
	missing := installNames(s.deps.Missing())
	return &dependenciesStatusResult{
		Ready:    len(missing) == 0,
		Packages: installNames(s.deps.Packages()),
		Missing:  missing,
	}, nil
}

type installArgs struct {
	ProgressToken interface{} `json:"progress_token"`
}

type installFailure struct {
	Package    string `json:"package"`
	Diagnostic string `json:"diagnostic"`
}

type dependenciesInstallResult struct {
	Ready           bool             `json:"ready"`
	Installed       int              `json:"installed"`
	Failures        []installFailure `json:"failures"`
	RestartRequired bool             `json:"restart_required"`
	Message         string           `json:"message,omitempty"`
}

// progressParams is the payload of a notifications/progress message.
type progressParams struct {
	ProgressToken interface{} `json:"progressToken"`
	Progress      int         `json:"progress"`
	Total         int         `json:"total"`
	Message       string      `json:"message,omitempty"`
}

// handleDependenciesInstall runs the install batch to completion, streaming
// progress while it runs. Package failures are reported in the result; only
// an environment error fails the call.
func (s *Server) handleDependenciesInstall(ctx context.Context, params ToolCallParams) (interface{}, error) {
	if s.deps == nil {
		return nil, errNoInstaller
	}

	var args installArgs
	if err := unmarshalArgs(params.Arguments, &args); err != nil {
		return nil, err
	}
	token := lo.Ternary(params.Meta.ProgressToken != nil, params.Meta.ProgressToken, args.ProgressToken)

	batch, ready := s.deps.CheckAndInstall(ctx)
	if ready {
		return &dependenciesInstallResult{Ready: true, Failures: []installFailure{}}, nil
	}

	var last string
	summary := installer.Drive(batch, func(u installer.Update) {
		last = u.Message
		if token == nil {
			return
		}
		s.notify("notifications/progress", &progressParams{
			ProgressToken: token,
			Progress:      u.Value,
			Total:         u.Max,
			Message:       u.Message,
		})
	})
	if summary.Err != nil {
		return nil, summary.Err
	}

	result := &dependenciesInstallResult{
		Ready:           summary.Ready(),
		Failures:        []installFailure{},
		RestartRequired: true,
		Message:         last,
	}
	for _, o := range summary.Outcomes {
		if o.Success {
			result.Installed++
			continue
		}
		result.Failures = append(result.Failures, installFailure{Package: o.Package, Diagnostic: o.Diagnostic})
	}
	return result, nil
}

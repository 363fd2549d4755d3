package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/ironsheep/occlusion-mcp/internal/detection"
	"github.com/ironsheep/occlusion-mcp/internal/geometry"
	"github.com/ironsheep/occlusion-mcp/internal/imaging"
	"github.com/ironsheep/occlusion-mcp/internal/installer"
	"github.com/ironsheep/occlusion-mcp/internal/pyenv"
)

// createTestImageFile creates a temporary PNG image file for testing.
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "card.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func box(minX, minY, maxX, maxY float64) geometry.Polygon {
	return geometry.Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}.Polygon()
}

// labelOracle reports two overlapping words and one separate label.
var labelOracle = detection.OracleFunc(func(context.Context, string) ([]detection.Detection, error) {
	return []detection.Detection{
		{Polygon: box(10, 10, 40, 20), Confidence: 0.9, Text: "left"},
		{Polygon: box(35, 10, 60, 20), Confidence: 0.8, Text: "ventricle"},
		{Polygon: box(10, 50, 30, 60), Confidence: 0.95, Text: "aorta"},
		{Polygon: box(70, 70, 90, 80), Confidence: 0.3, Text: "noise"},
	}, nil
})

func newDetectionServer(t *testing.T, oracle detection.Oracle) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	cache := imaging.NewImageCache(4)
	return New(Options{
		Engine: detection.NewEngine(oracle, cache, detection.DefaultClusterOptions(), logger),
		Cache:  cache,
		Logger: logger,
	})
}

func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	return s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: raw})
}

// toolResult decodes the text content of a successful tool response into v.
func toolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
}

func TestHandleToolsCall_AutoCover(t *testing.T) {
	s := newDetectionServer(t, labelOracle)
	path := createTestImageFile(t, 100, 100, color.White)

	var got autoCoverResult
	toolResult(t, callTool(t, s, "occlusion_auto_cover", map[string]interface{}{"path": path}), &got)

	if got.Count != 2 || len(got.Rects) != 2 {
		t.Fatalf("expected 2 rects, got %+v", got)
	}
	if got.Width != 100 || got.Height != 100 || got.Format != "png" || got.FileSizeBytes == 0 {
		t.Errorf("unexpected image info %+v", got.ImageInfo)
	}
	want := map[detection.Rect]bool{
		{X: 10, Y: 10, Width: 50, Height: 10}: true,
		{X: 10, Y: 50, Width: 20, Height: 10}: true,
	}
	for _, r := range got.Rects {
		if !want[r] {
			t.Errorf("unexpected rect %+v", r)
		}
	}
}

func TestHandleToolsCall_AutoCover_Thresholds(t *testing.T) {
	s := newDetectionServer(t, labelOracle)
	path := createTestImageFile(t, 100, 100, color.White)

	var got autoCoverResult
	toolResult(t, callTool(t, s, "occlusion_auto_cover", map[string]interface{}{
		"path":           path,
		"min_confidence": 0.2,
	}), &got)

	if got.Count != 3 {
		t.Errorf("lower cutoff should keep the noisy label too, got %d rects", got.Count)
	}
}

func TestHandleToolsCall_AutoCover_NoText(t *testing.T) {
	s := newDetectionServer(t, detection.OracleFunc(func(context.Context, string) ([]detection.Detection, error) {
		return nil, nil
	}))
	path := createTestImageFile(t, 20, 20, color.White)

	var got autoCoverResult
	toolResult(t, callTool(t, s, "occlusion_auto_cover", map[string]interface{}{"path": path}), &got)

	if got.Count != 0 || got.Rects == nil {
		t.Errorf("expected an empty rect list, got %+v", got)
	}
}

func TestHandleToolsCall_AutoCover_Errors(t *testing.T) {
	tests := []struct {
		name   string
		server *Server
		args   map[string]interface{}
		want   string
	}{
		{"no path", newDetectionServer(t, labelOracle), map[string]interface{}{}, "no image path"},
		{"missing file", newDetectionServer(t, labelOracle), map[string]interface{}{"path": "/nonexistent/card.png"}, "could not load image"},
		{"no oracle", newDetectionServer(t, nil), map[string]interface{}{"path": "/tmp/x.png"}, "not available"},
		{"no engine", New(Options{}), map[string]interface{}{"path": "/tmp/x.png"}, "not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, tt.server, "occlusion_auto_cover", tt.args)
			if resp.Error == nil {
				t.Fatal("expected error response")
			}
			if resp.Error.Code != -32000 {
				t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
			}
			if data, _ := resp.Error.Data.(string); !strings.Contains(data, tt.want) {
				t.Errorf("error data %q should contain %q", data, tt.want)
			}
		})
	}
}

func TestHandleToolsCall_Preview(t *testing.T) {
	s := newDetectionServer(t, labelOracle)
	path := createTestImageFile(t, 100, 100, color.White)
	output := filepath.Join(t.TempDir(), "preview.png")

	var got previewResult
	toolResult(t, callTool(t, s, "occlusion_preview", map[string]interface{}{
		"path":   path,
		"output": output,
		"color":  "#FF0000",
	}), &got)

	if got.Count != 2 || got.Output != output {
		t.Fatalf("unexpected result %+v", got)
	}

	img, err := imaging.NewImageCache(1).Load(output)
	if err != nil {
		t.Fatalf("preview not readable: %v", err)
	}
	r, g, b, _ := img.At(20, 15).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("masked pixel should be red, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = img.At(80, 30).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("unmasked pixel should stay white, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestHandleToolsCall_Preview_ExplicitRects(t *testing.T) {
	// No engine: explicit rects must not need one.
	s := New(Options{CoverColor: "#000000"})
	path := createTestImageFile(t, 50, 50, color.White)
	output := filepath.Join(t.TempDir(), "preview.png")

	var got previewResult
	toolResult(t, callTool(t, s, "occlusion_preview", map[string]interface{}{
		"path":   path,
		"output": output,
		"rects":  []detection.Rect{{X: 0, Y: 0, Width: 10, Height: 10}},
	}), &got)

	if got.Count != 1 {
		t.Fatalf("expected 1 rect, got %d", got.Count)
	}
	img, err := imaging.NewImageCache(1).Load(output)
	if err != nil {
		t.Fatalf("preview not readable: %v", err)
	}
	if r, _, _, _ := img.At(5, 5).RGBA(); r != 0 {
		t.Errorf("configured cover color should be used, got r=%d", r>>8)
	}
}

func TestHandleToolsCall_Preview_Overwrite(t *testing.T) {
	s := New(Options{})
	path := createTestImageFile(t, 20, 20, color.White)
	output := filepath.Join(t.TempDir(), "preview.png")
	rects := []detection.Rect{{X: 0, Y: 0, Width: 10, Height: 10}}

	render := func(fill string) {
		t.Helper()
		resp := callTool(t, s, "occlusion_preview", map[string]interface{}{
			"path": path, "output": output, "color": fill, "rects": rects,
		})
		if resp.Error != nil {
			t.Fatalf("preview failed: %+v", resp.Error)
		}
	}

	render("#FF0000")
	if _, err := s.cache.Load(output); err != nil {
		t.Fatalf("preview not readable: %v", err)
	}
	render("#0000FF")

	img, err := s.cache.Load(output)
	if err != nil {
		t.Fatalf("preview not readable: %v", err)
	}
	if r, _, b, _ := img.At(5, 5).RGBA(); r>>8 != 0 || b>>8 != 255 {
		t.Errorf("re-rendered preview should be blue, got r=%d b=%d", r>>8, b>>8)
	}
}

func TestHandleToolsCall_Preview_Errors(t *testing.T) {
	s := newDetectionServer(t, labelOracle)
	path := createTestImageFile(t, 10, 10, color.White)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"no output", map[string]interface{}{"path": path}},
		{"no path", map[string]interface{}{"output": "/tmp/out.png"}},
		{"bad color", map[string]interface{}{"path": path, "output": filepath.Join(t.TempDir(), "o.png"), "color": "red"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, "occlusion_preview", tt.args)
			if resp.Error == nil || resp.Error.Code != -32000 {
				t.Errorf("expected tool error, got %+v", resp)
			}
		})
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := New(Options{})
	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})

	if resp.Error == nil {
		t.Fatal("Expected error for unknown tool")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(Options{})
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`{invalid json}`),
	})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestHandleToolsCall_BadArguments(t *testing.T) {
	s := newDetectionServer(t, labelOracle)
	resp := callTool(t, s, "occlusion_auto_cover", "not an object")
	if resp.Error == nil || !strings.Contains(resp.Error.Data.(string), "invalid arguments") {
		t.Errorf("expected invalid arguments error, got %+v", resp.Error)
	}
}

// === Dependencies ===

// TestInstallHelperProcess is not a real test. It stands in for pip.
func TestInstallHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	pkg := os.Args[len(os.Args)-1]
	fmt.Println("Collecting " + pkg)
	fmt.Println("  Downloading " + pkg + "-1.0.whl (1 MB) 60%")
	fmt.Println("Installing collected packages: " + pkg)
	if pkg == os.Getenv("HELPER_FAIL") {
		fmt.Fprintln(os.Stderr, "ERROR: could not build wheels for "+pkg)
		os.Exit(1)
	}
	fmt.Println("Successfully installed " + pkg + "-1.0")
	os.Exit(0)
}

func helperInstall(fail string) installer.CommandFunc {
	return func(ctx context.Context, runtime string, spec installer.PackageSpec, targetDir string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestInstallHelperProcess", "--", spec.InstallName)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_FAIL="+fail)
		return cmd
	}
}

type fixedLocator struct {
	runtime string
	err     error
}

func (l fixedLocator) Find(context.Context) (string, error) {
	return l.runtime, l.err
}

func newInstallServer(t *testing.T, installed map[string]bool, loc installer.RuntimeLocator, fail string) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	return New(Options{
		Installer: installer.New(installer.Options{
			Probe:     pyenv.ProbeFunc(func(name string) bool { return installed[name] }),
			Locator:   loc,
			TargetDir: t.TempDir(),
			Command:   helperInstall(fail),
			Logger:    logger,
		}),
		Logger: logger,
	})
}

func TestHandleToolsCall_DependenciesStatus(t *testing.T) {
	s := newInstallServer(t, map[string]bool{"easyocr": true}, fixedLocator{runtime: "python3"}, "")

	var got dependenciesStatusResult
	toolResult(t, callTool(t, s, "dependencies_status", nil), &got)

	if got.Ready {
		t.Error("should not be ready with a missing package")
	}
	if len(got.Missing) != 1 || got.Missing[0] != "opencv-python-headless" {
		t.Errorf("unexpected missing list %v", got.Missing)
	}
	if len(got.Packages) != 2 {
		t.Errorf("expected 2 packages, got %v", got.Packages)
	}
}

func TestHandleToolsCall_DependenciesInstall_AllPresent(t *testing.T) {
	s := newInstallServer(t, map[string]bool{"easyocr": true, "cv2": true}, fixedLocator{runtime: "python3"}, "")

	var got dependenciesInstallResult
	toolResult(t, callTool(t, s, "dependencies_install", nil), &got)

	if !got.Ready || got.Installed != 0 || got.RestartRequired {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestHandleToolsCall_DependenciesInstall_StreamsProgress(t *testing.T) {
	s := newInstallServer(t, nil, fixedLocator{runtime: "python3"}, "opencv-python-headless")

	var out bytes.Buffer
	in := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"dependencies_install","_meta":{"progressToken":"deps"}}}` + "\n"
	if err := s.Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	msgs := decodeLines(t, &out)
	if len(msgs) < 3 {
		t.Fatalf("expected progress notifications and a response, got %d messages", len(msgs))
	}

	last := -1.0
	for _, m := range msgs[:len(msgs)-1] {
		if m["method"] != "notifications/progress" {
			t.Fatalf("expected progress notification, got %v", m)
		}
		params := m["params"].(map[string]interface{})
		if params["progressToken"] != "deps" {
			t.Errorf("progressToken: got %v", params["progressToken"])
		}
		if params["total"] != float64(200) {
			t.Errorf("total: got %v, want 200", params["total"])
		}
		p := params["progress"].(float64)
		if p < last {
			t.Errorf("progress went backwards: %v after %v", p, last)
		}
		last = p
	}
	if last != 200 {
		t.Errorf("final progress: got %v, want 200", last)
	}

	resp := msgs[len(msgs)-1]
	if resp["id"] != float64(7) {
		t.Fatalf("last message should be the response, got %v", resp)
	}
	content := resp["result"].(map[string]interface{})["content"].([]interface{})
	var got dependenciesInstallResult
	if err := json.Unmarshal([]byte(content[0].(map[string]interface{})["text"].(string)), &got); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}

	if !got.Ready {
		t.Error("a package failure is advisory; the queue still completes")
	}
	if got.Installed != 1 {
		t.Errorf("Installed: got %d, want 1", got.Installed)
	}
	if len(got.Failures) != 1 || got.Failures[0].Package != "opencv-python-headless" {
		t.Fatalf("unexpected failures %+v", got.Failures)
	}
	if !strings.Contains(got.Failures[0].Diagnostic, "return code 1") {
		t.Errorf("diagnostic should carry the exit code, got %q", got.Failures[0].Diagnostic)
	}
	if !got.RestartRequired {
		t.Error("restart should be required after installing")
	}
}

func TestHandleToolsCall_DependenciesInstall_NoToken(t *testing.T) {
	s := newInstallServer(t, map[string]bool{"easyocr": true}, fixedLocator{runtime: "python3"}, "")

	var out bytes.Buffer
	in := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"dependencies_install"}}` + "\n"
	if err := s.Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	msgs := decodeLines(t, &out)
	if len(msgs) != 1 {
		t.Fatalf("without a token only the response is written, got %d messages", len(msgs))
	}
}

func TestHandleToolsCall_DependenciesInstall_RuntimeMissing(t *testing.T) {
	s := newInstallServer(t, nil, fixedLocator{err: pyenv.ErrRuntimeNotFound}, "")

	resp := callTool(t, s, "dependencies_install", map[string]interface{}{"progress_token": 1})
	if resp.Error == nil {
		t.Fatal("an environment error should fail the call")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Data.(string), "Python") {
		t.Errorf("error should name the missing runtime, got %v", resp.Error.Data)
	}
}

func TestHandleToolsCall_DependenciesNotConfigured(t *testing.T) {
	s := New(Options{})
	for _, name := range []string{"dependencies_status", "dependencies_install"} {
		if resp := callTool(t, s, name, nil); resp.Error == nil {
			t.Errorf("%s should fail without an installer", name)
		}
	}
}

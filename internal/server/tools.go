package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func thresholdProperties() map[string]interface{} {
	return map[string]interface{}{
		"min_confidence": map[string]interface{}{
			"type":        "number",
			"description": "Detections at or below this confidence (0-1) are ignored. Default 0.60",
			"default":     0.60,
		},
		"overlap_threshold": map[string]interface{}{
			"type":        "number",
			"description": "Fraction of the smaller box that must overlap for two boxes to merge. Default 0.1",
			"default":     0.1,
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	autoCoverProps := map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file",
		},
	}
	for k, v := range thresholdProperties() {
		autoCoverProps[k] = v
	}

	previewProps := map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file",
		},
		"output": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path of the PNG to write",
		},
		"color": map[string]interface{}{
			"type":        "string",
			"description": "Mask fill as #RRGGBB. Defaults to the configured cover color",
		},
		"opacity": map[string]interface{}{
			"type":        "number",
			"description": "Mask opacity from 0 to 1. Default 1.0",
			"default":     1.0,
		},
		"rects": map[string]interface{}{
			"type":        "array",
			"description": "Masks to draw as {x, y, w, h}. When omitted, auto-cover runs first",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{"type": "integer"},
					"y": map[string]interface{}{"type": "integer"},
					"w": map[string]interface{}{"type": "integer"},
					"h": map[string]interface{}{"type": "integer"},
				},
				"required": []string{"x", "y", "w", "h"},
			},
		},
	}
	for k, v := range thresholdProperties() {
		previewProps[k] = v
	}

	return []Tool{
		// Detection
		{
			Name:        "occlusion_auto_cover",
			Description: "Detect text labels in an image and return merged occlusion rectangles {x, y, w, h} in image pixels, along with the image width, height and format. Nearby words that overlap are merged into one mask.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": autoCoverProps,
				"required":   []string{"path"},
			},
		},
		{
			Name:        "occlusion_preview",
			Description: "Render occlusion masks over an image and save the result as PNG. Use this to check what auto-cover would hide.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": previewProps,
				"required":   []string{"path", "output"},
			},
		},

		// Dependencies
		{
			Name:        "dependencies_status",
			Description: "Report whether the text-recognition runtime packages are installed and list the missing ones.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "dependencies_install",
			Description: "Install the missing text-recognition runtime packages one at a time. Streams notifications/progress when a progress token is given. A failed package does not stop the queue; failures are listed in the result.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"progress_token": map[string]interface{}{
						"description": "Token echoed in notifications/progress. Progress is only streamed when set",
					},
				},
			},
		},
	}
}

// handleToolsList returns the tool catalogue.
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}

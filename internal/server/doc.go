// Package server implements the MCP (Model Context Protocol) server for the
// occlusion editor.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//   - Logs: stderr only, so they never corrupt the protocol stream
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Detection:
//   - occlusion_auto_cover: Detect text and return merged mask rects
//   - occlusion_preview: Draw masks over an image and save a PNG
//
// Dependencies:
//   - dependencies_status: Report which runtime packages are missing
//   - dependencies_install: Install missing packages, one at a time
//
// # Progress
//
// dependencies_install blocks until the whole queue has been processed. When
// the call carries a progress token (params._meta.progressToken, or the
// progress_token argument) every installer update is sent as a
// notifications/progress message before the final response:
//
//	{"progressToken": "deps", "progress": 150, "total": 200, "message": "..."}
//
// progress is completed*100 plus the current package's percentage, out of
// total = packages*100. It never decreases.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A package that fails to install is not a tool error: the queue carries on
// and the failure is listed in the result. Only an environment problem, such
// as a missing Python runtime, fails dependencies_install.
package server

// Package geometry provides the box arithmetic used to merge text detections.
//
// Detections arrive as arbitrary 4-point polygons (text is often slightly
// rotated). Everything in this package reduces those polygons to their
// axis-aligned envelope and compares envelopes by intersection area.
//
// # Coordinate System
//
// Coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Values are float64 because detection oracles report sub-pixel corners.
//
// # Overlap Rule
//
// Two boxes overlap when their intersection covers more than a threshold
// fraction of the SMALLER box. Measuring against the smaller box lets a short
// word be absorbed into a long line of text even though it is a tiny fraction
// of the line's area. A zero-area box that still intersects another box
// counts as overlapping.
package geometry

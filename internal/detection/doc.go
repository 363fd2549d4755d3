// Package detection turns raw text detections into occlusion rectangles.
//
// An image-occlusion editor covers each text label of a diagram with a mask.
// This package drives the auto-cover feature: an Oracle reports text regions
// as confidence-scored quadrilaterals, and Cluster reduces them to a minimal
// set of non-redundant, axis-aligned Rects.
//
// # Pipeline
//
//  1. Validation: the image path must be present and decodable
//  2. Detection: the Oracle returns []Detection (black box, see package ocr)
//  3. Filtering: detections with confidence <= MinConfidence are dropped
//  4. Clustering: overlapping boxes merge greedily into enclosing envelopes
//  5. Conversion: envelopes are truncated to integer Rects
//
// # Clustering
//
// Two boxes overlap when their intersection covers more than
// OverlapThreshold of the smaller box (see geometry.Overlaps). Merging is
// transitive: the scan restarts after every absorption, so chains of
// overlapping words collapse into one rect. Inputs are bounded by the number
// of text regions in one image, so the O(n³) worst case is not a concern.
//
// # Background Work
//
// Engine.Start runs one auto-cover call on its own goroutine and delivers a
// single Result over a channel. Failures, including panics, arrive as
// Result.Err; nothing crosses the goroutine boundary any other way.
package detection

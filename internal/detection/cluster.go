package detection

import (
	"image"

	"github.com/samber/lo"

	"github.com/ironsheep/occlusion-mcp/internal/geometry"
)

// DefaultMinConfidence is the confidence a detection must exceed to be kept.
const DefaultMinConfidence = 0.60

// Detection is a single raw text-region report from an oracle.
type Detection struct {
	// Polygon is the quadrilateral around the text, in image coordinates.
	Polygon geometry.Polygon `json:"polygon"`

	// Confidence is the oracle's score for this region (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Text is the recognized content, if the oracle reports it.
	Text string `json:"text,omitempty"`
}

// Rect is an axis-aligned occlusion mask candidate.
//
// The JSON keys match what the editor's drawing surface consumes.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// Rectangle returns r as an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// ClusterOptions controls filtering and merging.
type ClusterOptions struct {
	// MinConfidence drops detections whose confidence is <= this value.
	MinConfidence float64 `json:"min_confidence"`

	// OverlapThreshold is the fraction of the smaller box that must be
	// covered for two boxes to merge.
	OverlapThreshold float64 `json:"overlap_threshold"`
}

// DefaultClusterOptions returns the stock policy: 0.60 confidence cutoff and
// a 10% overlap threshold.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		MinConfidence:    DefaultMinConfidence,
		OverlapThreshold: geometry.DefaultOverlapThreshold,
	}
}

// Cluster filters detections by confidence and merges overlapping ones into
// enclosing rectangles.
//
// The merge is a greedy envelope growth: the first remaining box seeds a
// cluster, and any box that overlaps the cluster's envelope is absorbed. After
// every absorption the scan restarts from the beginning of the worklist,
// because the grown envelope may now reach boxes the seed alone did not. This
// yields the transitive closure of the overlap relation, so a chain A-B-C
// merges into one rect even if A and C are disjoint.
//
// Emitted clusters are never revisited, so the set of rects can depend on
// input order: a box that seeds its own cluster stays separate even if a later
// envelope grows over it.
//
// Rects are returned in cluster emission order. An empty input, or one where
// nothing survives the filter, returns an empty (non-nil) slice.
func Cluster(detections []Detection, opts ClusterOptions) []Rect {
	kept := lo.Filter(detections, func(d Detection, _ int) bool {
		return opts.keeps(d)
	})

	worklist := lo.Map(kept, func(d Detection, _ int) geometry.Box {
		// Polygon length was checked above, so the error is always nil.
		b, _ := geometry.BoundingBox(d.Polygon)
		return b
	})

	rects := make([]Rect, 0, len(worklist))
	for len(worklist) > 0 {
		cluster := worklist[0]
		worklist = worklist[1:]

		i := 0
		for i < len(worklist) {
			if geometry.Overlaps(cluster, worklist[i], opts.OverlapThreshold) {
				cluster = geometry.Union(cluster, worklist[i])
				worklist = append(worklist[:i], worklist[i+1:]...)
				i = 0
				continue
			}
			i++
		}

		rects = append(rects, toRect(cluster))
	}

	return rects
}

// keeps reports whether d passes the confidence cutoff. The cutoff is strict.
func (o ClusterOptions) keeps(d Detection) bool {
	return d.Confidence > o.MinConfidence && len(d.Polygon) > 0
}

// toRect truncates a box to integer pixels. Width and height are computed
// before truncation.
func toRect(b geometry.Box) Rect {
	return Rect{
		X:      int(b.MinX),
		Y:      int(b.MinY),
		Width:  int(b.Width()),
		Height: int(b.Height()),
	}
}

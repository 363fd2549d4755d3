// Package imaging loads images for detection and renders auto-cover previews.
//
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. RenderCover and PrepareForOCR never
// modify their input and can be called concurrently on the same image.
//
// # Previews
//
// RenderCover paints the rects that auto-cover would create onto a copy of
// the image as a quick visual check of the merge thresholds:
//
//	fill, _ := imaging.ParseFill(imaging.DefaultCoverColor)
//	preview := imaging.RenderCover(img, rects, fill, 1.0)
//	err := imaging.SavePNG("/tmp/preview.png", preview)
//
// # Error Handling
//
// Functions return errors for missing or undecodable image files, invalid
// colours, and encoding failures when saving.
package imaging

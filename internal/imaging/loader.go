package imaging

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of decoded images kept when no size is given.
const DefaultCacheSize = 32

// ImageCache provides thread-safe caching of decoded images to avoid
// redundant disk reads.
//
// The editor usually runs auto-cover, then a preview, then auto-cover again
// after tweaking thresholds, all on the same image. The cache keeps the most
// recently used images and evicts the least recently used one once it is full.
//
// Images are keyed by the exact path string, so relative and absolute paths
// to the same file produce separate entries.
type ImageCache struct {
	images *lru.Cache[string, image.Image]
}

// NewImageCache creates a cache holding at most size images. A size <= 0
// uses DefaultCacheSize.
func NewImageCache(size int) *ImageCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	images, _ := lru.New[string, image.Image](size)
	return &ImageCache{images: images}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Decoding applies the EXIF orientation, so detection coordinates match what
// the editor displays. Supported formats are PNG, JPEG, GIF, BMP and TIFF.
func (c *ImageCache) Load(path string) (image.Image, error) {
	if img, ok := c.images.Get(path); ok {
		return img, nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	c.images.Add(path, img)
	return img, nil
}

// Evict removes one image from the cache. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.images.Remove(path)
}

// Clear removes every image from the cache.
func (c *ImageCache) Clear() {
	c.images.Purge()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	return c.images.Len()
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels (after EXIF orientation).
	Width int `json:"width"`

	// Height is the image height in pixels (after EXIF orientation).
	Height int `json:"height"`

	// Format is "png", "jpeg", "gif", "bmp", "tiff" or "unknown", detected
	// from the file extension.
	Format string `json:"format"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and returns its metadata.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format, err := imaging.FormatFromFilename(path)
	name := "unknown"
	if err == nil {
		name = strings.ToLower(format.String())
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        name,
		FileSizeBytes: stat.Size(),
	}, nil
}

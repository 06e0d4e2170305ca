// Package imaging prepares uploaded and captured pictures for the vision-language model.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

const (
	// DefaultMaxDimension caps the longer side of a processed image to save memory.
	DefaultMaxDimension = 1000

	// DefaultJPEGQuality is used when re-encoding processed images.
	DefaultJPEGQuality = 90

	// DefaultMaxPixels bounds the decoded size of an upload.
	DefaultMaxPixels = 89_478_485
)

var (
	// ErrUnsupportedFormat is returned for anything other than JPEG or PNG.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrDecode is returned for truncated or corrupt JPEG and PNG data.
	ErrDecode = errors.New("cannot decode image")

	// ErrTooLarge is returned when the image has more than MaxPixels pixels.
	ErrTooLarge = errors.New("image too large")
)

// Options tune image processing.
type Options struct {
	MaxDimension int `toml:"max_dimension"`
	JPEGQuality  int `toml:"jpeg_quality"`
	MaxPixels    int `toml:"max_pixels"`
}

// DefaultOptions returns the default processing options.
func DefaultOptions() Options {
	return Options{
		MaxDimension: DefaultMaxDimension,
		JPEGQuality:  DefaultJPEGQuality,
		MaxPixels:    DefaultMaxPixels,
	}
}

// Image is a processed picture: an opaque RGB bitmap plus its JPEG encoding.
type Image struct {
	// Pixels is always fully opaque.
	Pixels *image.RGBA

	// JPEG holds the re-encoded image sent to the model and served back to clients.
	JPEG []byte

	// Digest is the hex SHA-256 of JPEG.
	Digest string

	// Format is the decoded source format ("jpeg" or "png").
	Format string

	// Mode is the colour mode of the source, e.g. "RGB", "RGBA", "L", "P", "CMYK".
	Mode string

	// Converted reports whether the source needed conversion to RGB.
	Converted bool

	// Resized reports whether the source was scaled down.
	Resized bool

	// OriginalWidth and OriginalHeight are the source dimensions.
	OriginalWidth  int
	OriginalHeight int
}

// Width returns the processed width.
func (i *Image) Width() int { return i.Pixels.Bounds().Dx() }

// Height returns the processed height.
func (i *Image) Height() int { return i.Pixels.Bounds().Dy() }

// Process decodes r, converts it to RGB, scales it down if its longer side
// exceeds opts.MaxDimension and re-encodes it as JPEG.
func Process(r io.Reader, opts Options) (*Image, error) {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("%w: header: %v", ErrDecode, err)
	}
	if format != "jpeg" && format != "png" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	// must run before image.Decode allocates the bitmap
	if int64(cfg.Width)*int64(cfg.Height) > int64(opts.MaxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, opts.MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, format, err)
	}

	bounds := src.Bounds()
	mode := colorMode(src)
	out := &Image{
		Format:         format,
		Mode:           mode,
		Converted:      mode != "RGB",
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}

	rgb := toRGB(src)

	if w, h, ok := scaledSize(bounds.Dx(), bounds.Dy(), opts.MaxDimension); ok {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), rgb, rgb.Bounds(), xdraw.Src, nil)
		rgb = dst
		out.Resized = true
	}
	out.Pixels = rgb

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	out.JPEG = buf.Bytes()

	sum := sha256.Sum256(out.JPEG)
	out.Digest = hex.EncodeToString(sum[:])

	return out, nil
}

// scaledSize returns the target size when the longer side exceeds maxDim.
func scaledSize(w, h, maxDim int) (int, int, bool) {
	longer := max(w, h)
	if longer <= maxDim {
		return w, h, false
	}
	ratio := float64(maxDim) / float64(longer)
	nw := max(int(float64(w)*ratio), 1)
	nh := max(int(float64(h)*ratio), 1)
	return nw, nh, true
}

// toRGB copies src into an opaque RGBA bitmap rooted at (0,0). Alpha is
// dropped rather than blended, so colour channels keep their straight values.
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

func colorMode(img image.Image) string {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	case *image.YCbCr:
		return "RGB"
	case *image.RGBA, *image.RGBA64:
		if isOpaque(m) {
			return "RGB"
		}
		return "RGBA"
	case *image.NRGBA, *image.NRGBA64:
		if isOpaque(m) {
			return "RGB"
		}
		return "RGBA"
	default:
		return "unknown"
	}
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// Package imaging inspects and normalises proof photos.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

const (
	FreshWindow     = 48 * time.Hour
	highResPixels   = 3000
	stockThreshold  = 3
	jpegQuality     = 85
	hashSide        = 8
	hashHexLength   = 32
	unknownCamera   = "unknown"
	aspectTolerance = 0.01
)

// Stock indicator names.
const (
	IndicatorHighResolution  = "high_resolution"
	IndicatorNoMetadata      = "no_metadata"
	IndicatorProCamera       = "professional_camera"
	IndicatorEditingSoftware = "editing_software"
	IndicatorStockAspect     = "stock_aspect_ratio"
)

var (
	stockAspects    = []float64{1.33, 1.50, 1.78}
	proCameras      = []string{"canon", "nikon", "sony alpha", "ilce"}
	editingSoftware = []string{"photoshop", "lightroom", "gimp"}
)

// Metadata is what the capture device recorded about a photo.
type Metadata struct {
	Make      string           `json:"make,omitempty"`
	Model     string           `json:"model,omitempty"`
	Software  string           `json:"software,omitempty"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
	GPS       *models.GeoPoint `json:"gps,omitempty"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
}

// Camera is "Make Model", or "unknown" when neither was recorded.
func (m Metadata) Camera() string {
	c := strings.TrimSpace(strings.TrimSpace(m.Make) + " " + strings.TrimSpace(m.Model))
	if c == "" {
		return unknownCamera
	}
	return c
}

// HasMetadata is false for images stripped of capture information.
func (m Metadata) HasMetadata() bool {
	return m.Make != "" || m.Model != "" || m.Timestamp != nil
}

// Analysis is the fraud-relevant summary of one proof photo.
type Analysis struct {
	Metadata        Metadata `json:"metadata"`
	Hash            string   `json:"hash"`
	Fresh           bool     `json:"fresh"`
	StockIndicators []string `json:"stockIndicators"`
	LikelyStock     bool     `json:"likelyStock"`
	RiskScore       int      `json:"riskScore"`
}

// Analyze decodes data, reads its EXIF block and scores it as of now.
func Analyze(data []byte, now time.Time) (*Analysis, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	meta := ExtractMetadata(data)
	b := img.Bounds()
	meta.Width, meta.Height = b.Dx(), b.Dy()

	a := assess(meta, now)
	a.Hash = Hash(img)
	return &a, nil
}

// ExtractMetadata reads EXIF fields. Missing or unreadable EXIF yields empty metadata.
func ExtractMetadata(data []byte) Metadata {
	var meta Metadata
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}
	meta.Make = exifString(x, exif.Make)
	meta.Model = exifString(x, exif.Model)
	meta.Software = exifString(x, exif.Software)
	if ts, err := x.DateTime(); err == nil {
		meta.Timestamp = &ts
	}
	if lat, lon, err := x.LatLong(); err == nil {
		meta.GPS = &models.GeoPoint{Lat: lat, Lon: lon}
	}
	return meta
}

func exifString(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

func assess(meta Metadata, now time.Time) Analysis {
	a := Analysis{Metadata: meta, StockIndicators: []string{}}

	// A photo without a capture time cannot be shown to be old.
	a.Fresh = meta.Timestamp == nil || now.Sub(*meta.Timestamp) <= FreshWindow

	lowerCam := strings.ToLower(meta.Camera())
	lowerSoft := strings.ToLower(meta.Software)
	highRes := meta.Width > highResPixels || meta.Height > highResPixels
	edited := containsAny(lowerSoft, editingSoftware)

	if highRes {
		a.StockIndicators = append(a.StockIndicators, IndicatorHighResolution)
	}
	if !meta.HasMetadata() {
		a.StockIndicators = append(a.StockIndicators, IndicatorNoMetadata)
	}
	if containsAny(lowerCam, proCameras) {
		a.StockIndicators = append(a.StockIndicators, IndicatorProCamera)
	}
	if edited {
		a.StockIndicators = append(a.StockIndicators, IndicatorEditingSoftware)
	}
	if stockAspect(meta.Width, meta.Height) {
		a.StockIndicators = append(a.StockIndicators, IndicatorStockAspect)
	}
	a.LikelyStock = len(a.StockIndicators) >= stockThreshold

	risk := 0
	if !meta.HasMetadata() {
		risk += 30
	}
	if !a.Fresh {
		risk += 20
	}
	if a.LikelyStock {
		risk += 25
	}
	if highRes {
		risk += 15
	}
	if edited {
		risk += 10
	}
	a.RiskScore = min(risk, 100)
	return a
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func stockAspect(w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	long, short := float64(max(w, h)), float64(min(w, h))
	ratio := math.Round(long/short*100) / 100
	for _, s := range stockAspects {
		if math.Abs(ratio-s) < aspectTolerance {
			return true
		}
	}
	return false
}

// Hash is a perceptual fingerprint: the SHA-256 of the 8x8 greyscale thumbnail, truncated
// to 32 hex characters. Re-encodes and resizes of the same photo collide.
func Hash(img image.Image) string {
	small := resize.Resize(hashSide, hashSide, img, resize.Bilinear)
	grey := make([]byte, 0, hashSide*hashSide)
	b := small.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			grey = append(grey, color.GrayModel.Convert(small.At(x, y)).(color.Gray).Y)
		}
	}
	sum := sha256.Sum256(grey)
	return hex.EncodeToString(sum[:])[:hashHexLength]
}

// Normalize shrinks the image to fit within maxDim on its longest side and re-encodes it
// as JPEG. Smaller images keep their size.
func Normalize(data []byte, maxDim int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	out := resize.Thumbnail(uint(maxDim), uint(maxDim), img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

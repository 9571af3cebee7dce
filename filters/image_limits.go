package filters

import "github.com/wudi/pdfcore/recovery"

// Bounds applied before a codec allocates a raster.
const (
	MaxImageSide         = 32768
	MaxImagePixels int64 = 64 << 20
)

func checkRaster(op string, width, height int) error {
	switch {
	case width <= 0 || height <= 0:
		return recovery.Errorf(recovery.KindSemantic, op, "raster of %dx%d", width, height)
	case width > MaxImageSide || height > MaxImageSide:
		return recovery.Errorf(recovery.KindLimit, op, "raster side over %d (%dx%d)", MaxImageSide, width, height)
	case int64(width)*int64(height) > MaxImagePixels:
		return recovery.Errorf(recovery.KindLimit, op, "raster of %d pixels over %d", int64(width)*int64(height), MaxImagePixels)
	}
	return nil
}

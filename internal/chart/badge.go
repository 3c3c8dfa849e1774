package chart

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"
)

// Badge status colours
var statusColors = map[string]string{
	"urgent_low":  "#ef4444", // Red
	"urgent_high": "#ef4444",
	"low":         "#f97316", // Orange
	"high":        "#facc15", // Yellow
	"normal":      "#4ade80", // Green
	"stale":       "#9ca3af", // Gray-400
}

// Badge draws a 64x64 status badge with the value and a trend arrow.
// Unknown statuses are drawn gray.
func Badge(text, direction, status string) image.Image {
	const (
		width  = 64
		height = 64
		radius = 16
	)

	dc := gg.NewContext(width, height)
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	bgHex, ok := statusColors[status]
	if !ok {
		bgHex = "#808080"
	}
	r, g, b := parseHexColor(bgHex)
	dc.SetRGB255(int(r), int(g), int(b))
	dc.DrawRoundedRectangle(0, 0, width, height, radius)
	dc.Fill()

	// Text color (black or white depending on brightness)
	brightness := (int(r)*299 + int(g)*587 + int(b)*114) / 1000
	if brightness > 128 {
		dc.SetColor(color.Black)
	} else {
		dc.SetColor(color.White)
	}

	if face, err := loadFace(34); err == nil {
		dc.SetFontFace(face)
		dc.DrawStringAnchored(text, width/2, height/2-12, 0.5, 0.5)
	}

	if direction != "" {
		drawArrow(dc, width/2, height-16, 24, direction)
	}

	return dc.Image()
}

// EncodePNG encodes img as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawArrow draws a vector arrow based on direction
func drawArrow(dc *gg.Context, x, y, size float64, direction string) {
	dc.Push()
	defer dc.Pop()

	dc.Translate(x, y)

	var angle float64
	switch direction {
	case "DoubleUp", "SingleUp":
		angle = 0
	case "FortyFiveUp":
		angle = 45
	case "Flat":
		angle = 90
	case "FortyFiveDown":
		angle = 135
	case "DoubleDown", "SingleDown":
		angle = 180
	default:
		return // No arrow
	}

	dc.Rotate(gg.Radians(angle))

	halfSize := size / 2
	if direction == "DoubleUp" || direction == "DoubleDown" {
		drawSingleArrow(dc, 0, -halfSize/2, size*0.8)
		drawSingleArrow(dc, 0, halfSize/2, size*0.8)
	} else {
		drawSingleArrow(dc, 0, 0, size)
	}
}

func drawSingleArrow(dc *gg.Context, ox, oy, s float64) {
	w := s * 0.5

	dc.NewSubPath()
	dc.MoveTo(ox, oy-s/2)
	dc.LineTo(ox+w/2, oy)
	dc.LineTo(ox+w/6, oy)
	dc.LineTo(ox+w/6, oy+s/2)
	dc.LineTo(ox-w/6, oy+s/2)
	dc.LineTo(ox-w/6, oy)
	dc.LineTo(ox-w/2, oy)
	dc.ClosePath()
	dc.Fill()
}

// parseHexColor parses a hex color string to RGB values
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}

// EncodeICO wraps img as a single-image ICO file with embedded PNG data
func EncodeICO(img image.Image) ([]byte, error) {
	pngData, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	// ICONDIR: reserved, type (1 = ICO), image count
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))

	// ICONDIRENTRY; 0 width or height means 256
	bounds := img.Bounds()
	buf.WriteByte(icoDimension(bounds.Dx()))
	buf.WriteByte(icoDimension(bounds.Dy()))
	buf.WriteByte(0) // No palette
	buf.WriteByte(0) // Reserved
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32))
	// #nosec G115 -- PNG size is limited by memory and will not overflow uint32
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	// Image data follows the 6-byte header and 16-byte entry
	_ = binary.Write(&buf, binary.LittleEndian, uint32(22))

	buf.Write(pngData)
	return buf.Bytes(), nil
}

func icoDimension(n int) byte {
	if n >= 256 {
		return 0
	}
	return byte(n)
}

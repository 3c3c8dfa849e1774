package chart

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/png"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-forecast/internal/models"
)

func TestSparkline(t *testing.T) {
	chart := Sparkline([]float64{100, 110, 120, 130, 140, 150, 140, 130, 120, 110, 100}, 10)
	require.NotEmpty(t, chart)

	lines := strings.Split(chart, "\n")
	require.Len(t, lines, 12)
	assert.Equal(t, "Max: 160", lines[0])
	assert.Equal(t, "Min: 90", lines[11])

	for _, line := range lines[1:11] {
		assert.Len(t, []rune(line), 11)
		for _, r := range line {
			assert.True(t, strings.ContainsRune(string(blocks), r), "unexpected rune %q", r)
		}
	}

	// The peak column reaches higher than the edges
	assert.Equal(t, '⣿', []rune(lines[3])[5])
	assert.Equal(t, '⠀', []rune(lines[3])[0])
}

func TestSparkline_Rounding(t *testing.T) {
	// Min 90, max 110: 100 fills exactly the bottom half
	chart := Sparkline([]float64{100, 100}, 10)
	lines := strings.Split(chart, "\n")

	assert.Equal(t, "⣿⣿", lines[10], "bottom line")
	assert.Equal(t, "⣿⣿", lines[6], "fifth line from bottom")
	assert.Equal(t, "⠀⠀", lines[5], "sixth line from bottom")
}

func TestSparkline_SineWave(t *testing.T) {
	var history []float64
	for i := 0; i < 24; i++ {
		history = append(history, 100+50*math.Sin(float64(i)*2*math.Pi/24))
	}

	chart := Sparkline(history, 10)
	require.NotEmpty(t, chart)
	t.Logf("Sine Wave Chart:\n%s", chart)
}

func TestSparkline_TooShort(t *testing.T) {
	assert.Empty(t, Sparkline([]float64{100}, 10))
	assert.Empty(t, Sparkline([]float64{100, 120}, 0))
}

func TestCompactSparkline(t *testing.T) {
	history := []float64{100, 110, 120, 130, 140, 150, 140, 130, 120, 110, 100}

	sparkline := CompactSparkline(history)
	lines := strings.Split(sparkline, "\n")
	require.Len(t, lines, 2)

	for i, line := range lines {
		assert.Len(t, []rune(line), len(history), "line %d", i)
	}

	assert.Equal(t, '⣿', []rune(lines[0])[5], "peak fills the top line")
	assert.Equal(t, '⠀', []rune(lines[0])[0], "minimum leaves the top line empty")
	assert.Equal(t, '⣀', []rune(lines[1])[0], "minimum still marks the bottom line")

	assert.Empty(t, CompactSparkline(nil))
}

func TestBadge(t *testing.T) {
	tests := []struct {
		status    string
		direction string
	}{
		{"normal", "Flat"},
		{"urgent_low", "DoubleDown"},
		{"high", "FortyFiveUp"},
		{"unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			img := Badge("120", tt.direction, tt.status)
			assert.Equal(t, 64, img.Bounds().Dx())
			assert.Equal(t, 64, img.Bounds().Dy())

			data, err := EncodePNG(img)
			require.NoError(t, err)
			_, err = png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
		})
	}
}

func TestEncodeICO(t *testing.T) {
	data, err := EncodeICO(Badge("99", "Flat", "normal"))
	require.NoError(t, err)
	require.Greater(t, len(data), 22)

	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(data[0:2]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[2:4]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[4:6]))
	assert.Equal(t, byte(64), data[6])
	assert.Equal(t, uint32(len(data)-22), binary.LittleEndian.Uint32(data[14:18]))
	assert.Equal(t, uint32(22), binary.LittleEndian.Uint32(data[18:22]))

	_, err = png.Decode(bytes.NewReader(data[22:]))
	assert.NoError(t, err)
}

func TestParseHexColor(t *testing.T) {
	r, g, b := parseHexColor("#4ade80")
	assert.Equal(t, []byte{0x4a, 0xde, 0x80}, []byte{r, g, b})

	r, g, b = parseHexColor("bogus")
	assert.Equal(t, []byte{0, 0, 0}, []byte{r, g, b})
}

func TestRenderPNG(t *testing.T) {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	readings := make([]models.Reading, 24)
	for i := range readings {
		readings[i] = models.Reading{Time: start.Add(time.Duration(i) * 5 * time.Minute), Value: 180 - 4*float64(i)}
	}
	last := readings[len(readings)-1]

	predictions := make([]models.Prediction, 6)
	for i := range predictions {
		predictions[i] = models.Prediction{
			Time:       last.Time.Add(time.Duration(i+1) * 5 * time.Minute),
			Value:      last.Value - 4*float64(i+1),
			Confidence: 0.9 - 0.1*float64(i),
		}
	}
	low := &models.LowGlucoseForecast{TimeToLow: 20 * time.Minute, ExpectedAt: last.Time.Add(20 * time.Minute), Threshold: 70}

	settings := models.DefaultSettings()
	opts := DefaultOptions(settings)
	opts.Width, opts.Height = 640, 320

	var buf bytes.Buffer
	require.NoError(t, RenderPNG(&buf, readings, predictions, low, opts))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 320, img.Bounds().Dy())
}

func TestRenderPNG_NoData(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPNG(&buf, nil, nil, nil, Options{})
	assert.True(t, errors.Is(err, ErrNoData))
	assert.Zero(t, buf.Len())
}

func TestRender_DefaultSize(t *testing.T) {
	dc, err := Render([]models.Reading{{Time: time.Now(), Value: 110}}, nil, nil, Options{Unit: "mmol/L"})
	require.NoError(t, err)
	assert.Equal(t, 800, dc.Width())
	assert.Equal(t, 400, dc.Height())
}

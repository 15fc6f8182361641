// Package waveform computes the procedural bar animation shown while
// recording. Bars is a pure function of the frame tick and the live level.
package waveform

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	BarCount      = 40
	IdleAmplitude = 0.06
	MinAmplitude  = 0.05
	MaxAmplitude  = 1.0
)

// Bars returns BarCount amplitudes in [MinAmplitude, MaxAmplitude]. When
// inactive every bar sits at IdleAmplitude and level is ignored.
func Bars(tick uint64, active bool, level float64) []float64 {
	bars := make([]float64, BarCount)
	if !active {
		for i := range bars {
			bars[i] = IdleAmplitude
		}
		return bars
	}
	t := float64(tick)
	for i := range bars {
		fi := float64(i)
		v := 0.18 +
			0.32*math.Sin(0.042*t+0.58*fi) +
			0.16*math.Sin(0.028*t+0.91*fi) +
			0.10*math.Sin(0.066*t+0.38*fi) +
			0.26*level
		bars[i] = math.Max(MinAmplitude, math.Min(MaxAmplitude, v))
	}
	return bars
}

var (
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var eighths = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Render draws bars as a block of height rows, bottom aligned.
func Render(bars []float64, height int, active bool) string {
	if height < 1 {
		height = 1
	}
	style := idleStyle
	if active {
		style = activeStyle
	}

	units := make([]int, len(bars))
	for i, b := range bars {
		units[i] = int(math.Round(b * float64(height*8)))
		if units[i] < 1 {
			units[i] = 1
		}
	}

	rows := make([]string, height)
	var sb strings.Builder
	for r := 0; r < height; r++ {
		sb.Reset()
		floor := (height - 1 - r) * 8
		for _, u := range units {
			fill := min(max(u-floor, 0), 8)
			sb.WriteRune(eighths[fill])
		}
		rows[r] = style.Render(sb.String())
	}
	return strings.Join(rows, "\n")
}

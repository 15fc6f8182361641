package waveform

import (
	"strings"
	"testing"
)

func TestIdleIgnoresLevel(t *testing.T) {
	for _, level := range []float64{0, 0.7, 2} {
		for _, b := range Bars(123, false, level) {
			if b != IdleAmplitude {
				t.Fatalf("idle bar = %v, want %v", b, IdleAmplitude)
			}
		}
	}
}

func TestActiveBounded(t *testing.T) {
	for tick := uint64(0); tick < 2000; tick += 7 {
		for _, level := range []float64{0, 1, 2, 10} {
			bars := Bars(tick, true, level)
			if len(bars) != BarCount {
				t.Fatalf("len = %d, want %d", len(bars), BarCount)
			}
			for i, b := range bars {
				if b < MinAmplitude || b > MaxAmplitude {
					t.Fatalf("tick %d level %v bar %d = %v out of bounds", tick, level, i, b)
				}
			}
		}
	}
}

func TestLevelRaisesAmplitude(t *testing.T) {
	sum := func(bars []float64) float64 {
		var s float64
		for _, b := range bars {
			s += b
		}
		return s
	}
	for _, tick := range []uint64{0, 50, 500, 1 << 40} {
		quiet := sum(Bars(tick, true, 0))
		loud := sum(Bars(tick, true, 1.5))
		if loud <= quiet {
			t.Errorf("tick %d: loud %v <= quiet %v", tick, loud, quiet)
		}
	}
}

func TestActiveDiffersFromIdle(t *testing.T) {
	active := Bars(10, true, 0.5)
	idle := Bars(10, false, 0.5)
	same := true
	for i := range active {
		if active[i] != idle[i] {
			same = false
		}
	}
	if same {
		t.Error("active and idle bars are identical")
	}
}

func TestRenderShape(t *testing.T) {
	out := Render(Bars(5, true, 1), 3, true)
	rows := strings.Split(out, "\n")
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if !strings.Contains(rows[2], "█") && !strings.ContainsAny(rows[2], "▁▂▃▄▅▆▇") {
		t.Error("bottom row is empty")
	}
}

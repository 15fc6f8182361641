package beep

import (
	"encoding/binary"
	"testing"
)

func TestTickDecays(t *testing.T) {
	s := tick(startFreq, 0.2, startVolume, startDecay)
	if len(s) != int(sampleRate*0.2) {
		t.Fatalf("len = %d", len(s))
	}
	peak := func(xs []int16) int {
		m := 0
		for _, x := range xs {
			v := int(x)
			if v < 0 {
				v = -v
			}
			m = max(m, v)
		}
		return m
	}
	head, tail := peak(s[:500]), peak(s[len(s)-500:])
	if tail >= head {
		t.Errorf("tail peak %d not below head peak %d", tail, head)
	}
}

func TestDoubleBeepLayout(t *testing.T) {
	s := doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	beepLen := int(sampleRate * 0.08)
	gapLen := int(sampleRate * 0.05)
	if len(s) != 2*beepLen+gapLen {
		t.Fatalf("len = %d, want %d", len(s), 2*beepLen+gapLen)
	}
	for i := beepLen; i < beepLen+gapLen; i++ {
		if s[i] != 0 {
			t.Fatalf("gap sample %d = %d", i, s[i])
		}
	}
}

func TestToBytes(t *testing.T) {
	b := toBytes([]int16{1, -2})
	if int16(binary.LittleEndian.Uint16(b[2:])) != -2 {
		t.Errorf("bytes = %v", b)
	}
}

func TestDisable(t *testing.T) {
	Disable()
	if Enabled() {
		t.Error("Enabled after Disable")
	}
	// must return without touching an audio server
	PlayStart()
	PlayStop()
	PlayError()
	Cues{}.Error()
}

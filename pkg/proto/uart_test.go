package proto

import (
	"testing"
)

// Clean 10x oversampling keeps the decoded sample positions exact.
const uartTestOpts = "samplerate 1MHz, bitrate 100kHz"

func uartOptions(frameFormat string) Options {
	return Options{
		Protocol:    "uart",
		Samplerate:  1000000,
		Bitrate:     100000,
		FrameFormat: frameFormat,
	}
}

func TestUARTByteWaveform(t *testing.T) {
	c, rec := newSession(t, uartOptions("8n1"))
	if err := c.ProcessValue(0x41); err != nil {
		t.Fatalf("ProcessValue: %v", err)
	}
	samples := finishSession(t, c, rec)

	// A data frame fills START, eight DATA, STOP and one stretched
	// idle slot; the widest idle slot only serves special symbols.
	// One frame length of idle level on both ends of the capture.
	const spb = 10
	const lead = 12 * spb
	const frame = 10*spb + 2*spb
	if len(samples) != lead+frame+lead {
		t.Fatalf("got %d samples, want %d", len(samples), lead+frame+lead)
	}

	// START low, 0x41 LSB first, STOP high, then idle high.
	wantBits := []bool{
		false,
		true, false, false, false, false, false, true, false,
		true,
	}
	for i, want := range wantBits {
		for k := 0; k < spb; k++ {
			at := lead + i*spb + k
			if got := samples[at]&uartMaskRxTx != 0; got != want {
				t.Fatalf("sample %d (bit %d): got %v, want %v",
					at, i, got, want)
			}
		}
	}
	for at := 0; at < lead; at++ {
		if samples[at]&uartMaskRxTx == 0 {
			t.Fatalf("sample %d: leading idle not high (%s)",
				at, uartTestOpts)
		}
	}
	for at := lead + 10*spb; at < len(samples); at++ {
		if samples[at]&uartMaskRxTx == 0 {
			t.Fatalf("sample %d: trailing idle not high", at)
		}
	}
}

func TestUARTScenario115200(t *testing.T) {
	// The stock 115200 bitrate at 1 MHz sampling gives a fractional
	// 8.68 samples per bit. Slot widths then alternate between 8 and
	// 9 samples while the accumulated frame stays on the ideal grid.
	c, rec := newSession(t, Options{
		Protocol:    "uart",
		Samplerate:  1000000,
		Bitrate:     115200,
		FrameFormat: "8n1",
	})
	if err := c.ProcessValue(0x41); err != nil {
		t.Fatalf("ProcessValue: %v", err)
	}
	samples := finishSession(t, c, rec)

	// Idle padding spans twelve bit times at the rounded 9 samples
	// per bit. The data frame covers twelve ideal bit times, rounded
	// once at the trailing edge: round(12 * 1000000 / 115200) = 104.
	const lead = 12 * 9
	const frame = 104
	if len(samples) != lead+frame+lead {
		t.Fatalf("got %d samples, want %d", len(samples), lead+frame+lead)
	}

	// Decode at the ideal bit centers, which stay inside their slot
	// no matter how the individual widths rounded. START low, 0x41
	// LSB first, STOP high.
	bitTime := float64(1000000) / 115200
	wantBits := []bool{
		false,
		true, false, false, false, false, false, true, false,
		true,
	}
	for i, want := range wantBits {
		at := lead + int(float64(i)*bitTime+bitTime/2)
		if got := samples[at]&uartMaskRxTx != 0; got != want {
			t.Fatalf("sample %d (bit %d): got %v, want %v", at, i, got, want)
		}
	}
}

func TestUARTDataBitsRange(t *testing.T) {
	// Slot positions of parity, stop and trailing idle all move with
	// the data bit count. Exercise both ends of the supported range.
	tests := []struct {
		format   string
		value    uint32
		wantBits []bool
	}{
		{"5n1", 0x15, []bool{
			false,
			true, false, true, false, true,
			true,
		}},
		{"9n1", 0x1a5, []bool{
			false,
			true, false, true, false, false, true, false, true, true,
			true,
		}},
	}
	for _, tc := range tests {
		c, rec := newSession(t, uartOptions(tc.format))
		if err := c.ProcessValue(tc.value); err != nil {
			t.Fatalf("%s: ProcessValue: %v", tc.format, err)
		}
		samples := finishSession(t, c, rec)

		const spb = 10
		lead := (len(tc.wantBits) + 2) * spb
		frame := len(tc.wantBits)*spb + 2*spb
		if len(samples) != lead+frame+lead {
			t.Fatalf("%s: got %d samples, want %d",
				tc.format, len(samples), lead+frame+lead)
		}
		for i, want := range tc.wantBits {
			for k := 0; k < spb; k++ {
				at := lead + i*spb + k
				if got := samples[at]&uartMaskRxTx != 0; got != want {
					t.Fatalf("%s sample %d (bit %d): got %v, want %v",
						tc.format, at, i, got, want)
				}
			}
		}
	}
}

func TestUARTParityBit(t *testing.T) {
	tests := []struct {
		format string
		value  uint32
		want   bool
	}{
		// 0x41 has two set bits.
		{"8o1", 0x41, true},
		{"8e1", 0x41, false},
		// 0x07 has three set bits.
		{"8o1", 0x07, false},
		{"8e1", 0x07, true},
	}
	for _, tc := range tests {
		c, rec := newSession(t, uartOptions(tc.format))
		if err := c.ProcessValue(tc.value); err != nil {
			t.Fatalf("%s: ProcessValue: %v", tc.format, err)
		}
		samples := finishSession(t, c, rec)

		// Thirteen slot frame. The parity bit sits after START and
		// eight DATA bits.
		const spb = 10
		const lead = 13 * spb
		at := lead + 9*spb
		if got := samples[at]&uartMaskRxTx != 0; got != tc.want {
			t.Fatalf("%s value %#x: parity bit got %v, want %v",
				tc.format, tc.value, got, tc.want)
		}
	}
}

func TestUARTInvertedPolarity(t *testing.T) {
	c, rec := newSession(t, uartOptions("8n1,inverted"))
	if err := c.ProcessValue(0x00); err != nil {
		t.Fatalf("ProcessValue: %v", err)
	}
	samples := finishSession(t, c, rec)

	const spb = 10
	const lead = 12 * spb
	// Idle rests low, START drives high, the 0x00 data bits follow
	// START at the same (inverted) high level.
	if samples[0]&uartMaskRxTx != 0 {
		t.Fatal("inverted idle level not low")
	}
	for at := lead; at < lead+9*spb; at++ {
		if samples[at]&uartMaskRxTx == 0 {
			t.Fatalf("sample %d: inverted START/DATA not high", at)
		}
	}
	// STOP returns to the low resting level.
	if samples[lead+9*spb]&uartMaskRxTx != 0 {
		t.Fatal("inverted STOP bit not low")
	}
}

func TestUARTSpecialSymbols(t *testing.T) {
	c, rec := newSession(t, uartOptions("8n1"))
	if err := c.ProcessPseudo("break"); err != nil {
		t.Fatalf("break: %v", err)
	}
	samples := finishSession(t, c, rec)

	// BREAK holds the line low for the full frame length, the
	// stretched idle slots return it high.
	const spb = 10
	const lead = 12 * spb
	for at := lead; at < lead+10*spb; at++ {
		if samples[at]&uartMaskRxTx != 0 {
			t.Fatalf("sample %d: BREAK level not low", at)
		}
	}
	for at := lead + 10*spb; at < len(samples); at++ {
		if samples[at]&uartMaskRxTx == 0 {
			t.Fatalf("sample %d: post BREAK idle not high", at)
		}
	}

	c, rec = newSession(t, uartOptions("8n1"))
	if err := c.ProcessPseudo("idle"); err != nil {
		t.Fatalf("idle: %v", err)
	}
	samples = finishSession(t, c, rec)
	for at, s := range samples {
		if s&uartMaskRxTx == 0 {
			t.Fatalf("sample %d: IDLE capture not high throughout", at)
		}
	}
}

func TestUARTRejectsUnknownDirective(t *testing.T) {
	c, rec := newSession(t, uartOptions("8n1"))
	if err := c.ProcessPseudo("wat"); err == nil {
		t.Fatal("unknown directive accepted")
	}
	finishSession(t, c, rec)
}

func TestUARTHalfStopBitWidth(t *testing.T) {
	c, rec := newSession(t, uartOptions("8n1.5"))
	if err := c.ProcessValue(0xff); err != nil {
		t.Fatalf("ProcessValue: %v", err)
	}
	samples := finishSession(t, c, rec)

	// Filled slots: START, eight DATA, STOP, half STOP, one idle.
	// The half slot contributes five samples.
	const spb = 10
	const lead = 13 * spb
	const frame = 10*spb + spb/2 + 2*spb
	if len(samples) != lead+frame+lead {
		t.Fatalf("got %d samples, want %d", len(samples), lead+frame+lead)
	}
}

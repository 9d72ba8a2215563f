package stream

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/OpenTraceWave/pkg/feed"
	"github.com/OpenTraceLab/OpenTraceWave/pkg/proto"
)

const sampleTextFile = `# -- sigrok protocol data values file --
# -- sigrok protocol data header start --
# a free-form comment between the directives
samplerate=1000000
bitrate=100000
protocol=uart
frameformat=8n1
textinput=yes
# -- sigrok protocol data header end --
# textinput: radix=16
41 42
# uart: break
43
`

func importAll(t *testing.T, user proto.Options, data []byte, chunk int) *feed.Recorder {
	t.Helper()
	rec := &feed.Recorder{}
	im := NewImporter(user, rec, zerolog.Nop())
	for len(data) > 0 {
		n := chunk
		if n > len(data) {
			n = len(data)
		}
		if err := im.Read(data[:n]); err != nil {
			t.Fatalf("Read: %v", err)
		}
		data = data[n:]
	}
	if err := im.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	return rec
}

func TestImporterTextFile(t *testing.T) {
	rec := importAll(t, proto.Options{}, []byte(sampleTextFile), 1<<20)

	if !rec.Ended {
		t.Fatal("no end-of-stream event")
	}
	if !reflect.DeepEqual(rec.Channels, []string{"rxtx"}) {
		t.Fatalf("channels: got %v, want [rxtx]", rec.Channels)
	}
	if rec.Samplerate != 1000000 {
		t.Fatalf("samplerate: got %d, want 1000000", rec.Samplerate)
	}
	if len(rec.Runs) == 0 {
		t.Fatal("no sample runs emitted")
	}
}

func TestImporterChunkingInvariance(t *testing.T) {
	// No chunk boundary may change the generated waveform: markers,
	// header lines and value tokens all can get split. Single-byte
	// chunks exercise every possible split position.
	data := []byte(sampleTextFile)
	whole := importAll(t, proto.Options{}, data, len(data))
	tiny := importAll(t, proto.Options{}, data, 1)
	if !reflect.DeepEqual(whole.Runs, tiny.Runs) {
		t.Fatal("chunking changed the generated runs")
	}
}

func TestImporterByteOrderMark(t *testing.T) {
	data := []byte(sampleTextFile)
	plain := importAll(t, proto.Options{}, data, len(data))
	bommed := importAll(t, proto.Options{},
		append([]byte{0xef, 0xbb, 0xbf}, data...), 1)
	if !reflect.DeepEqual(plain.Runs, bommed.Runs) {
		t.Fatal("BOM changed the generated runs")
	}
}

func TestImporterBinaryWithoutMagic(t *testing.T) {
	// No magic, no header: raw bytes with user provided options.
	user := proto.Options{
		Samplerate: 1000000,
		Bitrate:    100000,
		Protocol:   "uart",
	}
	rec := importAll(t, user, []byte{0x41, 0x42}, 1)

	if !reflect.DeepEqual(rec.Channels, []string{"rxtx"}) {
		t.Fatalf("channels: got %v, want [rxtx]", rec.Channels)
	}
	if len(rec.Runs) == 0 {
		t.Fatal("no sample runs emitted")
	}
}

func TestImporterUserOptionsOverrideHeader(t *testing.T) {
	user := proto.Options{Bitrate: 50000}
	rec := importAll(t, user, []byte(sampleTextFile), 1<<20)

	// The header's 100k bitrate loses; at 50k the capture carries
	// twice the samples per bit, so more samples overall than the
	// header-driven run.
	headerDriven := importAll(t, proto.Options{}, []byte(sampleTextFile), 1<<20)
	if len(rec.Samples()) <= len(headerDriven.Samples()) {
		t.Fatal("user bitrate override had no effect")
	}
}

func TestImporterRejectsUnknownHeaderKey(t *testing.T) {
	data := []byte("# -- sigrok protocol data values file --\n" +
		"# -- sigrok protocol data header start --\n" +
		"baudrate=9600\n" +
		"# -- sigrok protocol data header end --\n")
	im := NewImporter(proto.Options{}, &feed.Recorder{}, zerolog.Nop())
	err := im.Read(data)
	if !errors.Is(err, proto.ErrData) {
		t.Fatalf("got %v, want ErrData", err)
	}
}

func TestImporterRejectsTrailingGarbageValue(t *testing.T) {
	user := proto.Options{Input: proto.InputText}
	im := NewImporter(user, &feed.Recorder{}, zerolog.Nop())
	err := im.Read([]byte("41wat\n"))
	if !errors.Is(err, proto.ErrData) {
		t.Fatalf("got %v, want ErrData", err)
	}
}

func TestImporterPartialMagicResolvesAtEOF(t *testing.T) {
	// A buffered prefix of the magic line defers the decision; the
	// end-of-stream signal resolves it to "absent" and the bytes
	// count as payload.
	rec := &feed.Recorder{}
	im := NewImporter(proto.Options{}, rec, zerolog.Nop())
	if err := im.Read([]byte("# -- sigrok proto")); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rec.Runs) != 0 {
		t.Fatal("emitted samples while the magic was undecided")
	}
	if err := im.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if !rec.Ended {
		t.Fatal("no end-of-stream event")
	}
}

func TestImporterUnterminatedLastLine(t *testing.T) {
	user := proto.Options{Input: proto.InputText}
	rec := &feed.Recorder{}
	im := NewImporter(user, rec, zerolog.Nop())
	if err := im.Read([]byte("# textinput: radix=10\n65")); err != nil {
		t.Fatalf("Read: %v", err)
	}
	before := len(rec.Runs)
	if err := im.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if len(rec.Runs) <= before {
		t.Fatal("unterminated value line was not flushed at EOF")
	}
}

func TestImporterResetKeepsChannelIdentity(t *testing.T) {
	rec := &feed.Recorder{}
	im := NewImporter(proto.Options{}, rec, zerolog.Nop())
	if err := im.Read([]byte(sampleTextFile)); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := im.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	// Re-reading equivalent input succeeds.
	im.Reset()
	if err := im.Read([]byte(sampleTextFile)); err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if err := im.End(); err != nil {
		t.Fatalf("re-read End: %v", err)
	}

	// A different protocol changes the channel list, which a re-read
	// must refuse.
	im.Reset()
	spiFile := "# -- sigrok protocol data values file --\n" +
		"# -- sigrok protocol data header start --\n" +
		"protocol=spi\n" +
		"# -- sigrok protocol data header end --\n"
	err := im.Read([]byte(spiFile))
	if !errors.Is(err, proto.ErrChannelMismatch) {
		t.Fatalf("got %v, want ErrChannelMismatch", err)
	}
}

func TestImporterIncompleteHeaderEndsEmpty(t *testing.T) {
	data := []byte("# -- sigrok protocol data values file --\n" +
		"# -- sigrok protocol data header start --\n" +
		"samplerate=1000000\n")
	rec := &feed.Recorder{}
	im := NewImporter(proto.Options{}, rec, zerolog.Nop())
	if err := im.Read(data); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := im.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if len(rec.Runs) != 0 || rec.Ended {
		t.Fatal("incomplete header still produced output")
	}
}

func TestImporterHeaderOnlyPadsIdle(t *testing.T) {
	// A complete header with no payload values still yields a valid
	// capture: the leading and trailing idle pads frame an otherwise
	// empty session.
	data := []byte("# -- sigrok protocol data values file --\n" +
		"# -- sigrok protocol data header start --\n" +
		"samplerate=1000000\n" +
		"bitrate=100000\n" +
		"protocol=uart\n" +
		"frameformat=8n1\n" +
		"textinput=yes\n" +
		"# -- sigrok protocol data header end --\n")
	rec := importAll(t, proto.Options{}, data, len(data))

	if !rec.Ended {
		t.Fatal("no end-of-stream event")
	}
	// Two idle pads of twelve bit times each at 10 samples per bit.
	samples := rec.Samples()
	if len(samples) != 2*12*10 {
		t.Fatalf("got %d samples, want %d", len(samples), 2*12*10)
	}
	for at, s := range samples {
		if s == 0 {
			t.Fatalf("sample %d: idle pad not at idle level", at)
		}
	}
}

func TestImporterCloseRejectsFurtherInput(t *testing.T) {
	data := []byte(sampleTextFile)
	rec := &feed.Recorder{}
	im := NewImporter(proto.Options{}, rec, zerolog.Nop())
	if err := im.Read(data[:len(data)/2]); err != nil {
		t.Fatalf("Read: %v", err)
	}
	im.Close()
	im.Close()
	if err := im.Read(data[len(data)/2:]); !errors.Is(err, proto.ErrArgument) {
		t.Fatalf("read after close: got %v, want ErrArgument", err)
	}
	if err := im.End(); err != nil {
		t.Fatalf("End after close: %v", err)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"magic", "# -- sigrok protocol data values file --\n41\n", true},
		{"magic with bom", "\xef\xbb\xbf# -- sigrok protocol data values file --\n", true},
		{"plain text", "41 42 43\n", false},
		{"truncated magic", "# -- sigrok proto", false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		if got := Detect([]byte(tc.data)); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

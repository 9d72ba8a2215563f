package feed

import "github.com/OpenTraceLab/OpenTraceWave/pkg/wave"

// Run is one recorded emission: a channel level pattern repeated for a
// number of samples.
type Run struct {
	Levels wave.Levels
	Count  uint64
}

// Recorder is an in-memory Emitter, mainly used by tests and by
// consumers that post-process a whole capture at once.
type Recorder struct {
	Channels   []string
	Samplerate uint64
	Runs       []Run
	Ended      bool
}

func (r *Recorder) Start(channels []string, samplerate uint64) error {
	r.Channels = append([]string(nil), channels...)
	r.Samplerate = samplerate
	return nil
}

func (r *Recorder) Submit(levels wave.Levels, count uint64) error {
	r.Runs = append(r.Runs, Run{Levels: levels, Count: count})
	return nil
}

func (r *Recorder) End() error {
	r.Ended = true
	return nil
}

// Samples expands the recorded runs into one level per sample. Intended
// for tests that decode generated waveforms.
func (r *Recorder) Samples() []wave.Levels {
	var total uint64
	for _, run := range r.Runs {
		total += run.Count
	}
	samples := make([]wave.Levels, 0, total)
	for _, run := range r.Runs {
		for i := uint64(0); i < run.Count; i++ {
			samples = append(samples, run.Levels)
		}
	}
	return samples
}

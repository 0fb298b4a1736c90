// Package receiver turns lines from the serial link into decoded vitals
// frames with link-quality metrics and alarm state.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/vitals.link/internal/monitoring"
	"github.com/banshee-data/vitals.link/internal/nrz"
	"github.com/banshee-data/vitals.link/internal/serialmux"
	"github.com/banshee-data/vitals.link/internal/visualiser"
	"github.com/banshee-data/vitals.link/internal/vitals"
)

var logf = monitoring.Prefixed("receiver")

// DefaultHistorySize is the number of frames kept in memory when no size is
// configured.
const DefaultHistorySize = 256

var ErrUnsupportedLine = errors.New("unsupported line")

// Frame is one decoded reading together with the bitstream it travelled as.
type Frame struct {
	ID         string             `json:"id"`
	ReceivedAt time.Time          `json:"receivedAt"`
	Source     string             `json:"source"`
	Payload    string             `json:"payload"`
	Sample     vitals.Sample      `json:"sample"`
	Alarm      vitals.Alarm       `json:"alarm"`
	Metrics    nrz.QualityMetrics `json:"metrics"`
	Trace      visualiser.Trace   `json:"trace"`
	Bits       nrz.Bitstream      `json:"-"`
}

// Recorder persists frames. *db.DB satisfies it.
type Recorder interface {
	RecordFrame(Frame) error
}

// Source is the part of a serial mux the receiver consumes.
type Source interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

var _ Source = (serialmux.SerialMuxInterface)(nil)

type Options struct {
	// Decoder slices sample lines and loopback waveforms. Defaults to
	// nrz.DefaultDecoderConfig.
	Decoder *nrz.Decoder
	// Analyzer scores every frame. Defaults to a randomly seeded analyzer.
	Analyzer    *nrz.Analyzer
	Profile     vitals.AlarmProfile
	HistorySize int
	Recorder    Recorder
	// Now is used for ReceivedAt; nil means time.Now.
	Now func() time.Time
}

// Receiver consumes lines from a Source and keeps a bounded history of
// decoded frames. It is safe for concurrent use.
type Receiver struct {
	src      Source
	decoder  *nrz.Decoder
	analyzer *nrz.Analyzer
	profile  vitals.AlarmProfile
	recorder Recorder
	now      func() time.Time

	mu      sync.RWMutex
	history []Frame
	next    int
	full    bool
}

func New(src Source, opts Options) *Receiver {
	r := &Receiver{
		src:      src,
		decoder:  opts.Decoder,
		analyzer: opts.Analyzer,
		profile:  opts.Profile,
		recorder: opts.Recorder,
		now:      opts.Now,
	}
	if r.decoder == nil {
		r.decoder = nrz.NewDecoder(nrz.DefaultDecoderConfig())
	}
	if r.analyzer == nil {
		r.analyzer = nrz.NewAnalyzer(nil)
	}
	if r.now == nil {
		r.now = time.Now
	}
	size := opts.HistorySize
	if size <= 0 {
		size = DefaultHistorySize
	}
	r.history = make([]Frame, size)
	return r
}

// Run subscribes to the source and handles lines until ctx is cancelled or
// the subscription channel closes.
func (r *Receiver) Run(ctx context.Context) error {
	id, c := r.src.Subscribe()
	defer r.src.Unsubscribe(id)

	for {
		select {
		case line, ok := <-c:
			if !ok {
				return nil
			}
			if _, err := r.HandleLine(line); err != nil {
				logf("skipping line %q: %v", line, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HandleLine decodes a single line, stores the resulting frame and passes
// it to the recorder. Recorder failures are logged, not returned.
func (r *Receiver) HandleLine(line string) (Frame, error) {
	return r.HandleLineAt(line, r.now())
}

// HandleLineAt is HandleLine with an explicit receive time, used when
// replaying captures.
func (r *Receiver) HandleLineAt(line string, at time.Time) (Frame, error) {
	source := serialmux.ClassifyPayload(line)

	var (
		sample vitals.Sample
		bits   nrz.Bitstream
		err    error
	)
	switch source {
	case serialmux.EventTypeVitals:
		sample, bits, err = r.loopback(line)
	case serialmux.EventTypeBits:
		bits, err = nrz.ParseBitstream(line)
		if err == nil {
			sample, err = decodeBits(bits)
		}
	case serialmux.EventTypeSamples:
		var samples []float64
		samples, err = parseSamples(line)
		if err == nil {
			bits = r.decoder.DecodeNRZ(samples)
			sample, err = decodeBits(bits)
		}
	default:
		err = ErrUnsupportedLine
	}
	if err != nil {
		return Frame{}, err
	}

	metrics := r.analyzer.CalculateMetrics(bits)
	f := Frame{
		ID:         uuid.NewString(),
		ReceivedAt: at,
		Source:     source,
		Payload:    sample.Payload(),
		Sample:     sample,
		Alarm:      r.profile.Classify(sample),
		Metrics:    metrics,
		Trace:      visualiser.NewTrace(bits, metrics),
		Bits:       bits,
	}
	if f.Alarm.Priority != vitals.PriorityNone {
		logf("%s priority alarm: hr=%d spo2=%d", f.Alarm.Priority, sample.HeartRate, sample.SpO2)
	}

	r.push(f)
	if r.recorder != nil {
		if err := r.recorder.RecordFrame(f); err != nil {
			logf("failed to record frame %s: %v", f.ID, err)
		}
	}
	return f, nil
}

// loopback re-encodes a demodulated reading and pushes it back through the
// slicer so the frame carries the bitstream the link would have seen.
func (r *Receiver) loopback(line string) (vitals.Sample, nrz.Bitstream, error) {
	s, err := vitals.ParseLine(line)
	if err != nil {
		return vitals.Sample{}, nil, err
	}
	s = s.Clamped()
	tx := nrz.GeneratePacketBitstream(s.HeartRate, s.SpO2)
	bits := r.decoder.DecodeNRZ(nrz.Modulate(tx, 1, 0))
	return s, bits, nil
}

// decodeBits reads a UART framed packet. Streams that do not open with a
// preamble group use the fixed-offset layout; a stream that does is held to
// its framing, so a broken stop bit or garbled payload is an error rather
// than a reading.
func decodeBits(bits nrz.Bitstream) (vitals.Sample, error) {
	s, err := nrz.DecodeFramedPacket(bits)
	if err == nil {
		return s.Clamped(), nil
	}
	if opensWithPreamble(bits) {
		return vitals.Sample{}, err
	}
	if raw, ok := nrz.ParsePacket(bits); ok {
		return raw.Clamped(), nil
	}
	return vitals.Sample{}, err
}

func opensWithPreamble(bits nrz.Bitstream) bool {
	b, err := nrz.DecodeByte(bits)
	return err == nil && b == nrz.PreambleByte
}

func parseSamples(line string) ([]float64, error) {
	fields := serialmux.SplitSamples(line)
	samples := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		samples[i] = v
	}
	return samples, nil
}

func (r *Receiver) push(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[r.next] = f
	r.next = (r.next + 1) % len(r.history)
	if r.next == 0 {
		r.full = true
	}
}

// Latest returns the most recent frame.
func (r *Receiver) Latest() (Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full && r.next == 0 {
		return Frame{}, false
	}
	i := (r.next - 1 + len(r.history)) % len(r.history)
	return r.history[i], true
}

// History returns the retained frames, oldest first.
func (r *Receiver) History() []Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		return append([]Frame(nil), r.history[:r.next]...)
	}
	out := make([]Frame, 0, len(r.history))
	out = append(out, r.history[r.next:]...)
	return append(out, r.history[:r.next]...)
}

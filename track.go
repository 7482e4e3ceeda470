package snapshot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// Re-export pion's RTPCodecType for convenience
type RTPCodecType = webrtc.RTPCodecType

const (
	RTPCodecTypeUnknown = webrtc.RTPCodecTypeUnknown
	RTPCodecTypeAudio   = webrtc.RTPCodecTypeAudio
	RTPCodecTypeVideo   = webrtc.RTPCodecTypeVideo
)

// TrackState represents the state of a track.
type TrackState int

const (
	TrackStateLive  TrackState = iota // Track is active and producing media
	TrackStateEnded                   // Track has ended
	TrackStateMuted                   // Track is muted (still active but not producing)
)

func (s TrackState) String() string {
	switch s {
	case TrackStateLive:
		return "live"
	case TrackStateEnded:
		return "ended"
	case TrackStateMuted:
		return "muted"
	default:
		return "unknown"
	}
}

// VideoSink receives frames pushed by a VideoTrack.
// OnFrame runs on the producer's goroutine; the frame is released after
// OnFrame returns unless the sink retains it. Sinks are compared by
// identity on removal, so implementations should be pointer types.
type VideoSink interface {
	OnFrame(frame *VideoFrame)
}

// Executor runs deferred tasks on an owning execution context.
type Executor interface {
	// Post schedules task for later execution. It never blocks on task.
	Post(task func())
}

// VideoTrack is a live source of video frames that sinks subscribe to.
// This is similar to the browser's MediaStreamTrack for video.
type VideoTrack interface {
	// ID returns the unique identifier for this track.
	ID() string

	// Kind returns the track kind - compatible with pion.
	Kind() RTPCodecType

	// State returns the current track state.
	State() TrackState

	// AddSink subscribes sink to frames.
	AddSink(sink VideoSink)

	// RemoveSink unsubscribes sink. Removing an unknown sink is a no-op.
	RemoveSink(sink VideoSink)

	// Executor returns the context that owns subscription changes.
	Executor() Executor

	// OnEnded sets a callback for when the track ends.
	OnEnded(callback func())

	// Done returns a channel that is closed once the track has ended.
	Done() <-chan struct{}

	// Settings returns the actual video settings.
	Settings() VideoTrackSettings
}

// VideoTrackSettings describes the actual video track settings.
type VideoTrackSettings struct {
	Width    int
	Height   int
	FPS      int
	SourceID string
}

// BaseTrack provides common functionality for tracks.
type BaseTrack struct {
	id       string
	streamID string
	label    string
	kind     RTPCodecType
	state    atomic.Int32
	enabled  atomic.Bool
	endedCb  func()
	mu       sync.RWMutex
	done     chan struct{}
	doneOnce sync.Once
}

// NewBaseTrack creates a new base track. An empty id gets a random UUID.
func NewBaseTrack(id, streamID, label string, kind RTPCodecType) *BaseTrack {
	if id == "" {
		id = uuid.NewString()
	}
	t := &BaseTrack{
		id:       id,
		streamID: streamID,
		label:    label,
		kind:     kind,
		done:     make(chan struct{}),
	}
	t.state.Store(int32(TrackStateLive))
	t.enabled.Store(true)
	return t
}

func (t *BaseTrack) ID() string         { return t.id }
func (t *BaseTrack) StreamID() string   { return t.streamID }
func (t *BaseTrack) Kind() RTPCodecType { return t.kind }
func (t *BaseTrack) Label() string      { return t.label }

func (t *BaseTrack) State() TrackState {
	return TrackState(t.state.Load())
}

// SetState updates the track state, firing the ended callback on the
// first transition to TrackStateEnded.
func (t *BaseTrack) SetState(state TrackState) {
	old := TrackState(t.state.Swap(int32(state)))
	if state == TrackStateEnded && old != TrackStateEnded {
		t.doneOnce.Do(func() { close(t.done) })
		t.mu.RLock()
		cb := t.endedCb
		t.mu.RUnlock()
		if cb != nil {
			go cb()
		}
	}
}

func (t *BaseTrack) Enabled() bool     { return t.enabled.Load() }
func (t *BaseTrack) SetEnabled(e bool) { t.enabled.Store(e) }

// Done is closed on the first transition to TrackStateEnded and stays
// closed. Any number of goroutines may wait on it.
func (t *BaseTrack) Done() <-chan struct{} {
	return t.done
}

func (t *BaseTrack) OnEnded(callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endedCb = callback
}

// SourceTrack is a VideoTrack fed by a VideoSource.
//
// Frames are fanned out to the current sinks on the source's goroutine.
// Subscription changes made from sinks should go through Executor so the
// fan-out never runs against a half-updated sink list.
type SourceTrack struct {
	*BaseTrack
	source   VideoSource
	executor *TaskQueue
	log      *logrus.Entry

	sinksMu sync.RWMutex
	sinks   []VideoSink

	framesDelivered atomic.Uint64
}

// SourceTrackConfig configures a SourceTrack.
type SourceTrackConfig struct {
	ID       string        // Track ID (default: random UUID)
	StreamID string        // Owning stream ID (default: random UUID)
	Label    string        // Human-readable label (default: source type)
	Logger   *logrus.Entry // Logger (default: standard logger)
}

// NewSourceTrack wraps source in a track. The track installs itself as the
// source's push callback; call Start to begin delivery.
func NewSourceTrack(source VideoSource, config SourceTrackConfig) *SourceTrack {
	if config.StreamID == "" {
		config.StreamID = uuid.NewString()
	}
	if config.Label == "" {
		config.Label = source.Config().SourceType.String()
	}
	log := config.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	t := &SourceTrack{
		BaseTrack: NewBaseTrack(config.ID, config.StreamID, config.Label, RTPCodecTypeVideo),
		source:    source,
		executor:  NewTaskQueue(64),
	}
	t.log = log.WithFields(logrus.Fields{"track_id": t.ID()})
	source.SetCallback(t.deliver)
	return t
}

// Start starts the underlying source.
func (t *SourceTrack) Start(ctx context.Context) error {
	if t.State() == TrackStateEnded {
		return ErrTrackEnded
	}
	if err := t.source.Start(ctx); err != nil {
		return fmt.Errorf("start source: %w", err)
	}
	t.log.WithFields(logrus.Fields{
		"function": "SourceTrack.Start",
		"source":   t.source.Config().SourceType.String(),
	}).Debug("Track started")
	return nil
}

// AddSink implements VideoTrack.
func (t *SourceTrack) AddSink(sink VideoSink) {
	t.sinksMu.Lock()
	t.sinks = append(t.sinks, sink)
	t.sinksMu.Unlock()
}

// RemoveSink implements VideoTrack.
func (t *SourceTrack) RemoveSink(sink VideoSink) {
	t.sinksMu.Lock()
	defer t.sinksMu.Unlock()
	for i, s := range t.sinks {
		if s == sink {
			t.sinks = append(t.sinks[:i], t.sinks[i+1:]...)
			return
		}
	}
}

// SinkCount returns the number of subscribed sinks.
func (t *SourceTrack) SinkCount() int {
	t.sinksMu.RLock()
	defer t.sinksMu.RUnlock()
	return len(t.sinks)
}

// FramesDelivered returns the number of frames fanned out to sinks.
func (t *SourceTrack) FramesDelivered() uint64 {
	return t.framesDelivered.Load()
}

// Executor implements VideoTrack.
func (t *SourceTrack) Executor() Executor { return t.executor }

// Settings implements VideoTrack.
func (t *SourceTrack) Settings() VideoTrackSettings {
	cfg := t.source.Config()
	return VideoTrackSettings{
		Width:    cfg.Width,
		Height:   cfg.Height,
		FPS:      cfg.FPS,
		SourceID: cfg.SourceType.String(),
	}
}

// Close stops the source, ends the track and drains the executor.
func (t *SourceTrack) Close() error {
	err := t.source.Close()
	t.SetState(TrackStateEnded)
	t.executor.Close()
	return err
}

func (t *SourceTrack) deliver(frame *VideoFrame) {
	defer frame.Release()
	if !t.Enabled() || t.State() != TrackStateLive {
		return
	}

	t.sinksMu.RLock()
	sinks := make([]VideoSink, len(t.sinks))
	copy(sinks, t.sinks)
	t.sinksMu.RUnlock()

	for _, s := range sinks {
		s.OnFrame(frame)
	}
	t.framesDelivered.Add(1)
}

var _ VideoTrack = (*SourceTrack)(nil)

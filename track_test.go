package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSink counts frames and can remove itself after the first one.
type countingSink struct {
	frames atomic.Int32
	track  VideoTrack
	once   bool
}

func (s *countingSink) OnFrame(*VideoFrame) {
	if s.frames.Add(1) == 1 && s.once {
		s.track.Executor().Post(func() { s.track.RemoveSink(s) })
	}
}

func TestBaseTrack(t *testing.T) {
	track := NewBaseTrack("", "stream", "label", RTPCodecTypeVideo)
	assert.NotEmpty(t, track.ID())
	assert.Equal(t, "stream", track.StreamID())
	assert.Equal(t, "label", track.Label())
	assert.Equal(t, RTPCodecTypeVideo, track.Kind())
	assert.Equal(t, TrackStateLive, track.State())
	assert.True(t, track.Enabled())

	other := NewBaseTrack("", "", "", RTPCodecTypeVideo)
	assert.NotEqual(t, track.ID(), other.ID())

	ended := make(chan struct{}, 2)
	track.OnEnded(func() { ended <- struct{}{} })
	track.SetState(TrackStateEnded)
	track.SetState(TrackStateEnded)

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("OnEnded callback not called")
	}
	select {
	case <-ended:
		t.Fatal("OnEnded callback called twice")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, "ended", track.State().String())
}

func TestBaseTrack_Done(t *testing.T) {
	track := NewBaseTrack("", "", "", RTPCodecTypeVideo)
	select {
	case <-track.Done():
		t.Fatal("Done closed on a live track")
	default:
	}

	track.SetState(TrackStateMuted)
	select {
	case <-track.Done():
		t.Fatal("Done closed on a muted track")
	default:
	}

	track.SetState(TrackStateEnded)
	track.SetState(TrackStateLive)
	assert.NotPanics(t, func() { track.SetState(TrackStateEnded) })
	select {
	case <-track.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after the track ended")
	}
}

func TestSourceTrack_FanOut(t *testing.T) {
	src := NewTestPatternSource(TestPatternConfig{Width: 64, Height: 48, FPS: 100})
	track := NewSourceTrack(src, SourceTrackConfig{ID: "cam"})
	assert.Equal(t, "cam", track.ID())
	assert.Equal(t, "TestPattern", track.Label())
	assert.Equal(t, VideoTrackSettings{Width: 64, Height: 48, FPS: 100, SourceID: "TestPattern"}, track.Settings())

	persistent := &countingSink{}
	oneShot := &countingSink{track: track, once: true}
	track.AddSink(persistent)
	track.AddSink(oneShot)
	assert.Equal(t, 2, track.SinkCount())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, track.Start(ctx))

	assert.Eventually(t, func() bool { return persistent.frames.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return track.SinkCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, track.FramesDelivered(), uint64(5))

	require.NoError(t, track.Close())
	assert.Equal(t, TrackStateEnded, track.State())
	assert.Equal(t, int32(1), oneShot.frames.Load())
	assert.ErrorIs(t, track.Start(ctx), ErrTrackEnded)
}

func TestSourceTrack_DisabledDropsFrames(t *testing.T) {
	src := NewTestPatternSource(TestPatternConfig{Width: 16, Height: 16})
	track := NewSourceTrack(src, SourceTrackConfig{})
	sink := &countingSink{}
	track.AddSink(sink)

	track.SetEnabled(false)
	frame := src.Generate()
	track.deliver(frame)
	assert.Equal(t, int32(0), sink.frames.Load())
	assert.Equal(t, 0, frame.RefCount(), "deliver consumes the source reference")

	track.SetEnabled(true)
	track.deliver(src.Generate())
	assert.Equal(t, int32(1), sink.frames.Load())

	track.RemoveSink(sink)
	track.RemoveSink(sink)
	assert.Equal(t, 0, track.SinkCount())
	require.NoError(t, track.Close())
}

func TestTaskQueue_Order(t *testing.T) {
	q := NewTaskQueue(4)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 4; i++ {
		i := i
		q.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	q.Close()

	assert.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestTaskQueue_OverflowNeverDrops(t *testing.T) {
	q := NewTaskQueue(1)

	block := make(chan struct{})
	q.Post(func() { <-block })

	var ran atomic.Int32
	for i := 0; i < 100; i++ {
		q.Post(func() { ran.Add(1) })
	}
	close(block)
	q.Close()

	assert.Equal(t, int32(100), ran.Load())
}

func TestTaskQueue_PostAfterClose(t *testing.T) {
	q := NewTaskQueue(0)
	q.Close()
	q.Close()

	done := make(chan struct{})
	q.Post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task posted after Close never ran")
	}
}

package snapshot

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// CaptureConfig configures a single-frame capture.
type CaptureConfig struct {
	// Quality is the JPEG quality (default: MaxJPEGQuality). Zero selects
	// the default; pass a custom Encoder for quality 0 output.
	Quality int

	// Format is the semi-planar layout handed to the encoder (default: NV21).
	Format PixelFormat

	// Timeout bounds how long Capture waits for a frame (0 = no limit).
	Timeout time.Duration

	// Encoder compresses the rotated image (default: NewJPEGEncoder()).
	Encoder JPEGEncoder

	// Logger receives capture lifecycle logs (default: standard logger).
	Logger *logrus.Entry
}

// DefaultCaptureConfig returns the configuration used for snapshots:
// NV21 at quality 100 with no timeout.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Quality: MaxJPEGQuality,
		Format:  PixelFormatNV21,
	}
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.Quality == 0 {
		c.Quality = MaxJPEGQuality
	}
	if !c.Format.SemiPlanar() {
		c.Format = PixelFormatNV21
	}
	if c.Encoder == nil {
		c.Encoder = NewJPEGEncoder()
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}

// ResultCallback receives the outcome of a capture: nil on success or a
// *CaptureError. It is called exactly once per FrameCapturer.
type ResultCallback func(err error)

// FrameCapturer is a single-use VideoSink that writes the first frame it
// receives to a JPEG file.
//
// The first OnFrame call wins: it converts the frame to a semi-planar
// buffer, releases the frame, posts its own removal from the track to the
// track's executor, applies the frame's rotation, then encodes and writes
// the file. Later frames are ignored. The whole pipeline runs on the
// goroutine that delivered the frame.
type FrameCapturer struct {
	track    VideoTrack
	path     string
	config   CaptureConfig
	callback ResultCallback
	log      *logrus.Entry

	captured atomic.Bool
}

// NewFrameCapturer subscribes a capturer to track. callback may be nil.
func NewFrameCapturer(track VideoTrack, path string, config CaptureConfig, callback ResultCallback) *FrameCapturer {
	config = config.withDefaults()
	if callback == nil {
		callback = func(error) {}
	}
	c := &FrameCapturer{
		track:    track,
		path:     path,
		config:   config,
		callback: callback,
		log: config.Logger.WithFields(logrus.Fields{
			"track_id": track.ID(),
			"path":     path,
		}),
	}

	c.log.WithField("function", "NewFrameCapturer").Debug("Subscribing frame capturer")
	track.AddSink(c)
	return c
}

// Captured reports whether the capturer has consumed its frame or been canceled.
func (c *FrameCapturer) Captured() bool {
	return c.captured.Load()
}

// OnFrame implements VideoSink.
func (c *FrameCapturer) OnFrame(frame *VideoFrame) {
	if frame == nil || !c.captured.CompareAndSwap(false, true) {
		return
	}
	c.finish(c.process(frame))
}

// Cancel abandons the capture if no frame has been taken yet. It
// unsubscribes and reports an ErrorKindCanceled result wrapping reason.
// It returns false if a frame already won.
func (c *FrameCapturer) Cancel(reason error) bool {
	if !c.captured.CompareAndSwap(false, true) {
		return false
	}
	c.unsubscribe()
	err := ErrCaptureCanceled
	if reason != nil {
		err = fmt.Errorf("%w: %w", ErrCaptureCanceled, reason)
	}
	c.finish(err)
	return true
}

func (c *FrameCapturer) process(frame *VideoFrame) error {
	frame.Retain()
	img, err := ConvertI420(frame, c.config.Format)
	rotation := frame.Rotation
	width, height := frame.Width, frame.Height
	frame.Release()

	c.unsubscribe()
	if err != nil {
		return err
	}

	img = img.Rotate(rotation)
	c.log.WithFields(logrus.Fields{
		"function":   "FrameCapturer.process",
		"rotation":   int(rotation),
		"src_width":  width,
		"src_height": height,
		"width":      img.Width,
		"height":     img.Height,
		"format":     img.Format.String(),
	}).Debug("Frame transformed")

	crop := image.Rect(0, 0, img.Width, img.Height)
	return WriteFileAtomic(c.path, func(w io.Writer) error {
		return c.config.Encoder.Encode(w, img, crop, c.config.Quality)
	})
}

// unsubscribe removes the capturer from its track on the track's executor.
func (c *FrameCapturer) unsubscribe() {
	exec := c.track.Executor()
	if exec == nil {
		exec = goExecutor{}
	}
	exec.Post(func() {
		c.track.RemoveSink(c)
	})
}

func (c *FrameCapturer) finish(err error) {
	if err == nil {
		c.log.WithField("function", "FrameCapturer.finish").Info("Snapshot written")
		c.callback(nil)
		return
	}
	ce := classifyError(err)
	c.log.WithFields(logrus.Fields{
		"function": "FrameCapturer.finish",
		"kind":     ce.Kind.String(),
		"error":    ce.Message,
	}).Warn("Snapshot failed")
	c.callback(ce)
}

// Capture writes the next frame of track to path as JPEG and blocks until
// the file is written, the capture fails, ctx is done, config.Timeout
// elapses or the track ends. A returned error is always a *CaptureError.
func Capture(ctx context.Context, track VideoTrack, path string, config CaptureConfig) error {
	if track.State() == TrackStateEnded {
		return classifyError(ErrTrackEnded)
	}
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	result := make(chan error, 1)
	c := NewFrameCapturer(track, path, config, func(err error) {
		result <- err
	})

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		// Either the cancellation or an in-flight frame settles the result.
		c.Cancel(ctx.Err())
		return <-result
	case <-track.Done():
		c.Cancel(ErrTrackEnded)
		return <-result
	}
}

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// RTPSourceConfig configures an RTPSource.
type RTPSourceConfig struct {
	Reader RTPReader     // Packet source (required)
	Width  int           // Frame width from signalling (required, even)
	Height int           // Frame height from signalling (required, even)
	FPS    int           // Nominal frame rate, informational only
	Logger *logrus.Entry // Logger (default: standard logger)

	// OrientationExtensionID is the CVO extension ID, resolved with
	// OrientationExtensionID (default: ExtensionIDVideoOrientation,
	// negative disables).
	OrientationExtensionID int
}

// RTPSourceStats counts what an RTPSource has seen.
type RTPSourceStats struct {
	PacketsReceived  uint64
	PacketsMalformed uint64
	FramesReceived   uint64
	FramesDropped    uint64
}

// RTPSource is a VideoSource that assembles RFC 4175 raw video frames read
// from an RTPReader.
type RTPSource struct {
	config  RTPSourceConfig
	reader  RTPReader
	depack  *RawVideoDepacketizer
	log     *logrus.Entry
	running atomic.Bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	frameCh chan *VideoFrame

	packets   atomic.Uint64
	malformed atomic.Uint64
	frames    atomic.Uint64
	dropped   atomic.Uint64

	callback VideoFrameCallback
	mu       sync.RWMutex
}

// NewRTPSource creates an RTP raw video source.
func NewRTPSource(config RTPSourceConfig) (*RTPSource, error) {
	if config.Reader == nil {
		return nil, fmt.Errorf("%w: RTP source needs a reader", ErrInvalidArgument)
	}
	depack, err := NewRawVideoDepacketizer(config.Width, config.Height)
	if err != nil {
		return nil, err
	}
	cvoID, err := OrientationExtensionID(config.OrientationExtensionID)
	if err != nil {
		return nil, err
	}
	depack.SetOrientationExtensionID(cvoID)
	log := config.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &RTPSource{
		config:  config,
		reader:  config.Reader,
		depack:  depack,
		log:     log.WithField("source", SourceTypeRTP.String()),
		frameCh: make(chan *VideoFrame, 2),
	}, nil
}

// Start begins reading packets.
func (s *RTPSource) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("source already running")
	}
	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})
	go s.readLoop(runCtx)
	return nil
}

// Stop stops delivering frames. The read loop exits once the reader returns.
func (s *RTPSource) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	return nil
}

// Close stops the source, closes the reader if it is an io.Closer and waits
// for the read loop to exit. With a reader that is not an io.Closer, Close
// blocks until the reader's next ReadRTP returns.
func (s *RTPSource) Close() error {
	s.Stop()

	var err error
	if c, ok := s.reader.(io.Closer); ok {
		err = c.Close()
	}
	if s.doneCh != nil {
		<-s.doneCh
	}
	s.depack.Reset()

	s.mu.Lock()
	if s.frameCh != nil {
		close(s.frameCh)
		for f := range s.frameCh {
			f.Release()
		}
		s.frameCh = nil
	}
	s.mu.Unlock()
	return err
}

// ReadFrame reads the next assembled frame (blocking).
func (s *RTPSource) ReadFrame(ctx context.Context) (*VideoFrame, error) {
	s.mu.RLock()
	ch := s.frameCh
	s.mu.RUnlock()
	if ch == nil {
		return nil, ErrSourceClosed
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-ch:
		if !ok {
			return nil, ErrSourceClosed
		}
		return frame, nil
	}
}

// SetCallback sets the push-mode callback.
func (s *RTPSource) SetCallback(cb VideoFrameCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// Config returns the source configuration.
func (s *RTPSource) Config() SourceConfig {
	return SourceConfig{
		Width:      s.config.Width,
		Height:     s.config.Height,
		FPS:        s.config.FPS,
		Format:     PixelFormatI420,
		SourceType: SourceTypeRTP,
	}
}

// Stats returns packet and frame counters.
func (s *RTPSource) Stats() RTPSourceStats {
	return RTPSourceStats{
		PacketsReceived:  s.packets.Load(),
		PacketsMalformed: s.malformed.Load(),
		FramesReceived:   s.frames.Load(),
		FramesDropped:    s.dropped.Load(),
	}
}

func (s *RTPSource) readLoop(ctx context.Context) {
	defer close(s.doneCh)

	for {
		pkt, err := s.reader.ReadRTP()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				s.log.WithField("function", "RTPSource.readLoop").Debug("Reader closed")
				return
			}
			s.log.WithFields(logrus.Fields{
				"function": "RTPSource.readLoop",
				"error":    err.Error(),
			}).Warn("RTP read failed")
			continue
		}
		s.packets.Add(1)

		frame, err := s.depack.Depacketize(pkt)
		if err != nil {
			s.malformed.Add(1)
			s.log.WithFields(logrus.Fields{
				"function": "RTPSource.readLoop",
				"sequence": pkt.Header.SequenceNumber,
				"error":    err.Error(),
			}).Debug("Dropping malformed packet")
			continue
		}
		if frame == nil {
			continue
		}
		s.frames.Add(1)
		s.deliver(ctx, frame)
	}
}

func (s *RTPSource) deliver(ctx context.Context, frame *VideoFrame) {
	s.mu.RLock()
	cb := s.callback
	ch := s.frameCh
	s.mu.RUnlock()

	if cb != nil {
		cb(frame)
		return
	}
	select {
	case <-ctx.Done():
		frame.Release()
	case ch <- frame:
	default:
		s.dropped.Add(1)
		frame.Release()
	}
}

func init() {
	RegisterVideoSource(SourceTypeRTP, func(config interface{}) (VideoSource, error) {
		cfg, ok := config.(*RTPSourceConfig)
		if !ok {
			return nil, fmt.Errorf("%w: RTP source needs *RTPSourceConfig, got %T", ErrInvalidArgument, config)
		}
		return NewRTPSource(*cfg)
	})
}

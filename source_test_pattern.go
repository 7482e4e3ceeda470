package snapshot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// PatternType defines the type of test pattern to generate.
type PatternType int

const (
	PatternColorBars    PatternType = iota // SMPTE color bars
	PatternGradient                        // Horizontal gradient
	PatternCheckerboard                    // Checkerboard pattern
	PatternSolidColor                      // Solid color
	PatternQuadrants                       // Four colored quadrants, shows orientation
)

func (p PatternType) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternGradient:
		return "Gradient"
	case PatternCheckerboard:
		return "Checkerboard"
	case PatternSolidColor:
		return "SolidColor"
	case PatternQuadrants:
		return "Quadrants"
	default:
		return "Unknown"
	}
}

// ParsePatternType maps a pattern name (as returned by String) to a PatternType.
func ParsePatternType(name string) (PatternType, error) {
	for p := PatternColorBars; p <= PatternQuadrants; p++ {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown pattern %q", ErrInvalidArgument, name)
}

// TestPatternConfig configures a test pattern source.
type TestPatternConfig struct {
	Width    int         // Frame width (default: 1280)
	Height   int         // Frame height (default: 720)
	FPS      int         // Frames per second (default: 30)
	Pattern  PatternType // Pattern type (default: ColorBars)
	Rotation Rotation    // Rotation hint stamped on every frame
	Padding  int         // Extra bytes per plane row, makes stride > width

	// For SolidColor pattern
	SolidR, SolidG, SolidB uint8

	// For Checkerboard pattern
	CheckerSize int // Size of each checker square (default: 32)
}

// DefaultTestPatternConfig returns a default test pattern configuration.
func DefaultTestPatternConfig() TestPatternConfig {
	return TestPatternConfig{
		Width:       1280,
		Height:      720,
		FPS:         30,
		Pattern:     PatternColorBars,
		CheckerSize: 32,
	}
}

// TestPatternSource generates synthetic I420 video frames.
type TestPatternSource struct {
	config TestPatternConfig
	pool   *FramePool

	frameDuration time.Duration
	startTime     time.Time

	running  atomic.Bool
	cancel   context.CancelFunc
	frameCh  chan *VideoFrame
	doneCh   chan struct{}
	callback VideoFrameCallback

	mu sync.RWMutex
}

// NewTestPatternSource creates a new test pattern video source.
func NewTestPatternSource(config TestPatternConfig) *TestPatternSource {
	if config.Width <= 0 {
		config.Width = 1280
	}
	if config.Height <= 0 {
		config.Height = 720
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.CheckerSize <= 0 {
		config.CheckerSize = 32
	}
	if config.Padding < 0 {
		config.Padding = 0
	}

	return &TestPatternSource{
		config:        config,
		pool:          NewFramePool(config.Width, config.Height, config.Padding),
		frameDuration: time.Second / time.Duration(config.FPS),
		frameCh:       make(chan *VideoFrame, 2),
	}
}

// Start begins generating frames.
func (s *TestPatternSource) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("source already running")
	}

	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})
	s.startTime = time.Now()

	go s.generateLoop(runCtx)
	return nil
}

// Stop stops generating frames and waits for the goroutine to exit.
func (s *TestPatternSource) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	<-s.doneCh
	return nil
}

// Close closes the source.
func (s *TestPatternSource) Close() error {
	s.Stop()
	s.mu.Lock()
	if s.frameCh != nil {
		close(s.frameCh)
		for f := range s.frameCh {
			f.Release()
		}
		s.frameCh = nil
	}
	s.mu.Unlock()
	return nil
}

// ReadFrame reads the next frame (blocking).
func (s *TestPatternSource) ReadFrame(ctx context.Context) (*VideoFrame, error) {
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
func (s *TestPatternSource) SetCallback(cb VideoFrameCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// Config returns the source configuration.
func (s *TestPatternSource) Config() SourceConfig {
	return SourceConfig{
		Width:      s.config.Width,
		Height:     s.config.Height,
		FPS:        s.config.FPS,
		Format:     PixelFormatI420,
		SourceType: SourceTypeTestPattern,
	}
}

// Generate renders one frame synchronously without starting the source.
func (s *TestPatternSource) Generate() *VideoFrame {
	frame := s.pool.Get()
	s.render(frame)
	frame.Rotation = s.config.Rotation
	return frame
}

func (s *TestPatternSource) generateLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := s.Generate()
			frame.Timestamp = time.Since(s.startTime).Nanoseconds()

			s.mu.RLock()
			cb := s.callback
			ch := s.frameCh
			s.mu.RUnlock()

			if cb != nil {
				cb(frame)
				continue
			}
			select {
			case ch <- frame:
			default:
				// Drop frame if channel full
				frame.Release()
			}
		}
	}
}

func (s *TestPatternSource) render(f *VideoFrame) {
	switch s.config.Pattern {
	case PatternGradient:
		s.fill(f, func(x, y int) (uint8, uint8, uint8) {
			v := uint8((x * 255) / s.config.Width)
			return v, v, v
		})
	case PatternCheckerboard:
		size := s.config.CheckerSize
		s.fill(f, func(x, y int) (uint8, uint8, uint8) {
			if ((x/size)+(y/size))%2 == 0 {
				return 255, 255, 255
			}
			return 0, 0, 0
		})
	case PatternSolidColor:
		r, g, b := s.config.SolidR, s.config.SolidG, s.config.SolidB
		s.fill(f, func(x, y int) (uint8, uint8, uint8) { return r, g, b })
	case PatternQuadrants:
		s.fill(f, func(x, y int) (uint8, uint8, uint8) {
			return QuadrantColor(x, y, s.config.Width, s.config.Height)
		})
	default:
		barWidth := max(s.config.Width/8, 1)
		s.fill(f, func(x, y int) (uint8, uint8, uint8) {
			rgb := colorBarsRGB[min(x/barWidth, 7)]
			return rgb[0], rgb[1], rgb[2]
		})
	}
}

// fill writes color(x, y) into the frame's planes honoring strides. Chroma
// takes the top-left pixel of each 2x2 block.
func (s *TestPatternSource) fill(f *VideoFrame, color func(x, y int) (r, g, b uint8)) {
	yp, sy, up, su, vp, sv, _ := f.Planes()
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := color(x, y)
			yy, u, v := rgbToYUV(r, g, b)
			yp[y*sy+x] = yy
			if x%2 == 0 && y%2 == 0 {
				up[(y/2)*su+x/2] = u
				vp[(y/2)*sv+x/2] = v
			}
		}
	}
}

// QuadrantColor returns the PatternQuadrants color at (x, y): red top-left,
// green top-right, blue bottom-left, white bottom-right.
func QuadrantColor(x, y, width, height int) (r, g, b uint8) {
	left, top := x < width/2, y < height/2
	switch {
	case top && left:
		return 255, 0, 0
	case top:
		return 0, 255, 0
	case left:
		return 0, 0, 255
	default:
		return 255, 255, 255
	}
}

// SMPTE color bars (simplified 8-bar pattern)
var colorBarsRGB = [][3]uint8{
	{192, 192, 192}, // White (75%)
	{192, 192, 0},   // Yellow
	{0, 192, 192},   // Cyan
	{0, 192, 0},     // Green
	{192, 0, 192},   // Magenta
	{192, 0, 0},     // Red
	{0, 0, 192},     // Blue
	{16, 16, 16},    // Black
}

// rgbToYUV converts RGB to full-range YCbCr (JFIF), matching image/jpeg.
func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	yf := 0.299*rf + 0.587*gf + 0.114*bf
	uf := 128 - 0.168736*rf - 0.331264*gf + 0.5*bf
	vf := 128 + 0.5*rf - 0.418688*gf - 0.081312*bf

	y = uint8(clamp(yf+0.5, 0, 255))
	u = uint8(clamp(uf+0.5, 0, 255))
	v = uint8(clamp(vf+0.5, 0, 255))
	return
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Register test pattern source factory
func init() {
	RegisterVideoSource(SourceTypeTestPattern, func(config interface{}) (VideoSource, error) {
		cfg, ok := config.(*TestPatternConfig)
		if !ok {
			defaultCfg := DefaultTestPatternConfig()
			cfg = &defaultCfg
		}
		return NewTestPatternSource(*cfg), nil
	})
}

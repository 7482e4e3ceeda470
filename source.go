package snapshot

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// SourceType identifies the type of video source.
type SourceType int

const (
	SourceTypeUnknown     SourceType = iota
	SourceTypeTestPattern            // Synthetic test pattern generator
	SourceTypeRTP                    // RFC 4175 raw video over RTP
	SourceTypeCustom                 // User-provided source
)

func (s SourceType) String() string {
	switch s {
	case SourceTypeTestPattern:
		return "TestPattern"
	case SourceTypeRTP:
		return "RTP"
	case SourceTypeCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// SourceConfig describes a video source's capabilities and configuration.
type SourceConfig struct {
	Width      int         // Frame width in pixels
	Height     int         // Frame height in pixels
	FPS        int         // Frames per second (0 = unknown)
	Format     PixelFormat // Pixel format
	SourceType SourceType  // Type of source
}

// VideoFrameCallback is called when a frame is available (push mode).
// The callback owns one reference to frame and must Release it.
type VideoFrameCallback func(frame *VideoFrame)

// VideoSource produces raw I420 video frames.
type VideoSource interface {
	io.Closer

	// Start begins capture/generation.
	Start(ctx context.Context) error

	// Stop halts capture/generation.
	Stop() error

	// ReadFrame reads the next frame (blocking) in pull mode.
	// The caller owns one reference to the frame and must Release it.
	ReadFrame(ctx context.Context) (*VideoFrame, error)

	// SetCallback sets push-mode callback for frame delivery.
	// When set, frames are pushed to the callback instead of being buffered.
	SetCallback(cb VideoFrameCallback)

	// Config returns the source configuration.
	Config() SourceConfig
}

// VideoSourceFactory creates a video source with the given configuration.
type VideoSourceFactory func(config interface{}) (VideoSource, error)

// sourceRegistry holds registered source factories.
type sourceRegistry struct {
	factories map[SourceType]VideoSourceFactory
	mu        sync.RWMutex
}

var globalSourceRegistry = &sourceRegistry{
	factories: make(map[SourceType]VideoSourceFactory),
}

// RegisterVideoSource registers a video source factory for a source type.
func RegisterVideoSource(stype SourceType, factory VideoSourceFactory) {
	globalSourceRegistry.mu.Lock()
	defer globalSourceRegistry.mu.Unlock()
	globalSourceRegistry.factories[stype] = factory
}

// CreateVideoSource creates a video source of the specified type.
func CreateVideoSource(stype SourceType, config interface{}) (VideoSource, error) {
	globalSourceRegistry.mu.RLock()
	factory, ok := globalSourceRegistry.factories[stype]
	globalSourceRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("video source type not available: %v: %w", stype, ErrNotSupported)
	}

	return factory(config)
}

// IsVideoSourceAvailable checks if a video source type is available.
func IsVideoSourceAvailable(stype SourceType) bool {
	globalSourceRegistry.mu.RLock()
	defer globalSourceRegistry.mu.RUnlock()
	_, ok := globalSourceRegistry.factories[stype]
	return ok
}

// AvailableVideoSources returns the registered source types in ascending order.
func AvailableVideoSources() []SourceType {
	globalSourceRegistry.mu.RLock()
	defer globalSourceRegistry.mu.RUnlock()

	types := make([]SourceType, 0, len(globalSourceRegistry.factories))
	for t := range globalSourceRegistry.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

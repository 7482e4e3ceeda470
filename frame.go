// Core frame types used across the snapshot package.
package snapshot

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// PixelFormat represents video pixel formats.
type PixelFormat int

const (
	PixelFormatI420 PixelFormat = iota // YUV 4:2:0 planar (Y + U + V)
	PixelFormatNV12                    // YUV 4:2:0 semi-planar (Y + interleaved UV)
	PixelFormatNV21                    // YUV 4:2:0 semi-planar (Y + interleaved VU)
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatNV21:
		return "NV21"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3 // Y, U, V
	case PixelFormatNV12, PixelFormatNV21:
		return 2 // Y, interleaved chroma
	default:
		return 0
	}
}

// SemiPlanar reports whether the format stores chroma interleaved.
func (p PixelFormat) SemiPlanar() bool {
	return p == PixelFormatNV12 || p == PixelFormatNV21
}

// Rotation is a clockwise rotation in degrees as reported by a frame source.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// ParseRotation converts a degree value into a Rotation.
func ParseRotation(degrees int) (Rotation, error) {
	r := Rotation(degrees)
	if !r.Valid() {
		return 0, fmt.Errorf("%w: rotation %d is not one of 0, 90, 180, 270", ErrInvalidArgument, degrees)
	}
	return r, nil
}

// Valid reports whether r is one of the four canonical angles.
func (r Rotation) Valid() bool {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return true
	}
	return false
}

// SwapsDimensions reports whether rotating by r exchanges width and height.
func (r Rotation) SwapsDimensions() bool {
	return r == Rotation90 || r == Rotation270
}

func (r Rotation) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rotation(%d)", int(r))
	}
	return fmt.Sprintf("%d°", int(r))
}

// ChromaSize returns the chroma plane dimensions for a 4:2:0 frame.
// Odd luma dimensions round up.
func ChromaSize(width, height int) (chromaWidth, chromaHeight int) {
	return (width + 1) / 2, (height + 1) / 2
}

// SemiPlanarSize returns the byte size of a contiguous NV12/NV21 buffer.
func SemiPlanarSize(width, height int) int {
	cw, ch := ChromaSize(width, height)
	return width*height + 2*cw*ch
}

// I420Size returns the total buffer size needed for an unpadded I420 frame.
// It is the same byte count as the semi-planar layout.
func I420Size(width, height int) int {
	return SemiPlanarSize(width, height)
}

// VideoFrame represents a raw video frame.
//
// Frames are reference counted. A producer hands out a frame holding one
// reference; consumers that keep using the planes past the callback that
// delivered them must Retain and later Release. When the last reference is
// dropped the frame's release hook runs (pooled frames return to their pool).
type VideoFrame struct {
	Data      [][]byte    // Plane data (Y, U, V for I420)
	Stride    []int       // Stride for each plane in bytes
	Width     int         // Frame width in pixels
	Height    int         // Frame height in pixels
	Format    PixelFormat // Pixel format
	Rotation  Rotation    // Clockwise rotation needed to display upright
	Timestamp int64       // Capture timestamp in nanoseconds

	refs      atomic.Int32
	onRelease func(*VideoFrame)
}

// NewI420Frame allocates an I420 frame. Each plane row is padded by
// padding bytes so strides exceed the logical plane width.
func NewI420Frame(width, height, padding int) *VideoFrame {
	cw, ch := ChromaSize(width, height)
	strideY := width + padding
	strideC := cw + padding
	f := &VideoFrame{
		Data: [][]byte{
			make([]byte, strideY*height),
			make([]byte, strideC*ch),
			make([]byte, strideC*ch),
		},
		Stride: []int{strideY, strideC, strideC},
		Width:  width,
		Height: height,
		Format: PixelFormatI420,
	}
	f.refs.Store(1)
	return f
}

// Retain adds a reference to the frame.
func (f *VideoFrame) Retain() {
	f.refs.Add(1)
}

// Release drops a reference. The release hook runs once the count hits zero.
func (f *VideoFrame) Release() {
	switch n := f.refs.Add(-1); {
	case n < 0:
		panic("snapshot: VideoFrame released more times than retained")
	case n == 0 && f.onRelease != nil:
		f.onRelease(f)
	}
}

// RefCount returns the current number of references.
func (f *VideoFrame) RefCount() int {
	return int(f.refs.Load())
}

// Planes returns the Y, U and V planes with their strides.
func (f *VideoFrame) Planes() (y []byte, strideY int, u []byte, strideU int, v []byte, strideV int, err error) {
	if f.Format != PixelFormatI420 || len(f.Data) < 3 || len(f.Stride) < 3 {
		return nil, 0, nil, 0, nil, 0, fmt.Errorf("%w: expected I420 frame with 3 planes, got %v with %d", ErrInvalidArgument, f.Format, len(f.Data))
	}
	return f.Data[0], f.Stride[0], f.Data[1], f.Stride[1], f.Data[2], f.Stride[2], nil
}

// Clone creates a deep copy of the video frame holding a single reference.
// Use this when you need to keep the frame data beyond its original lifetime.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Data:      make([][]byte, len(f.Data)),
		Stride:    make([]int, len(f.Stride)),
		Width:     f.Width,
		Height:    f.Height,
		Format:    f.Format,
		Rotation:  f.Rotation,
		Timestamp: f.Timestamp,
	}
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	clone.refs.Store(1)
	return clone
}

// FramePool recycles I420 frames of a fixed geometry.
type FramePool struct {
	pool          sync.Pool
	width, height int
	padding       int
}

// NewFramePool creates a pool of width x height I420 frames.
func NewFramePool(width, height, padding int) *FramePool {
	p := &FramePool{width: width, height: height, padding: padding}
	p.pool.New = func() interface{} {
		f := NewI420Frame(width, height, padding)
		f.onRelease = p.put
		return f
	}
	return p
}

// Get returns a frame holding one reference. Releasing it returns it to the pool.
func (p *FramePool) Get() *VideoFrame {
	f := p.pool.Get().(*VideoFrame)
	f.refs.Store(1)
	f.Rotation = Rotation0
	f.Timestamp = 0
	return f
}

func (p *FramePool) put(f *VideoFrame) {
	p.pool.Put(f)
}

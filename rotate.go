package snapshot

import "fmt"

// SemiPlanarImage is a contiguous NV12/NV21 buffer with its logical geometry.
type SemiPlanarImage struct {
	Data   []byte
	Width  int
	Height int
	Format PixelFormat

	// Strides holds the Y, U and V row strides (U and V per channel, in
	// samples) for consumers that expect an explicit stride triple. The
	// interleaved chroma row is 2*Strides[1] bytes.
	Strides [3]int
}

func newSemiPlanarImage(data []byte, width, height int, format PixelFormat) *SemiPlanarImage {
	cw, _ := ChromaSize(width, height)
	return &SemiPlanarImage{
		Data:    data,
		Width:   width,
		Height:  height,
		Format:  format,
		Strides: [3]int{width, cw, cw},
	}
}

// LumaPlane returns the full-resolution luma plane.
func (img *SemiPlanarImage) LumaPlane() []byte {
	return img.Data[:img.Width*img.Height]
}

// ChromaPlane returns the interleaved chroma plane.
func (img *SemiPlanarImage) ChromaPlane() []byte {
	return img.Data[img.Width*img.Height:]
}

// Rotate rotates the image clockwise by rot and returns the result.
// Rotation0 returns img itself.
func (img *SemiPlanarImage) Rotate(rot Rotation) *SemiPlanarImage {
	if rot == Rotation0 {
		return img
	}
	data, w, h := Rotate(img.Data, img.Width, img.Height, rot)
	return newSemiPlanarImage(data, w, h, img.Format)
}

// Rotate rotates a contiguous 4:2:0 semi-planar buffer clockwise by rot.
//
// It returns the rotated buffer and its logical dimensions, which are
// swapped for 90 and 270 degrees. Each chroma pair moves as a unit with
// its 2x2 luma block and keeps its internal sample order. Rotation0 returns
// src unchanged; any other angle allocates exactly one buffer of len(src).
//
// With an odd height at 90 degrees or an odd width at 270 degrees, chroma
// placement is approximate: the ceiling chroma grid of the result is offset
// by one luma column or row from the source blocks.
//
// Rotate panics if rot is not a canonical angle or if src does not hold
// SemiPlanarSize(width, height) bytes: frame sources only report the four
// canonical angles and buffers come from I420ToSemiPlanar.
func Rotate(src []byte, width, height int, rot Rotation) (dst []byte, outWidth, outHeight int) {
	if !rot.Valid() {
		panic(fmt.Sprintf("snapshot: invalid rotation %d", int(rot)))
	}
	if size := SemiPlanarSize(width, height); len(src) != size {
		panic(fmt.Sprintf("snapshot: semi-planar buffer is %d bytes, want %d for %dx%d", len(src), size, width, height))
	}

	outWidth, outHeight = width, height
	if rot.SwapsDimensions() {
		outWidth, outHeight = height, width
	}
	if rot == Rotation0 {
		return src, outWidth, outHeight
	}

	dst = make([]byte, len(src))
	lumaSize := width * height
	cw, ch := ChromaSize(width, height)

	switch rot {
	case Rotation90:
		rotateLuma90(dst[:lumaSize], src[:lumaSize], width, height)
		rotatePairs90(dst[lumaSize:], src[lumaSize:], cw, ch)
	case Rotation180:
		reverseLuma(dst[:lumaSize], src[:lumaSize])
		reversePairs(dst[lumaSize:], src[lumaSize:])
	case Rotation270:
		rotateLuma270(dst[:lumaSize], src[:lumaSize], width, height)
		rotatePairs270(dst[lumaSize:], src[lumaSize:], cw, ch)
	}
	return dst, outWidth, outHeight
}

// rotateLuma90 emits the source columns left to right, each read bottom to top.
func rotateLuma90(dst, src []byte, width, height int) {
	idx := 0
	for x := 0; x < width; x++ {
		for y := height - 1; y >= 0; y-- {
			dst[idx] = src[y*width+x]
			idx++
		}
	}
}

// rotateLuma270 emits the source columns right to left, each read top to bottom.
func rotateLuma270(dst, src []byte, width, height int) {
	idx := 0
	for x := width - 1; x >= 0; x-- {
		for y := 0; y < height; y++ {
			dst[idx] = src[y*width+x]
			idx++
		}
	}
}

func reverseLuma(dst, src []byte) {
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = src[n-1-i]
	}
}

// rotatePairs90 is rotateLuma90 over the cw x ch grid of chroma pairs.
func rotatePairs90(dst, src []byte, cw, ch int) {
	idx := 0
	for bx := 0; bx < cw; bx++ {
		for by := ch - 1; by >= 0; by-- {
			s := 2 * (by*cw + bx)
			dst[idx] = src[s]
			dst[idx+1] = src[s+1]
			idx += 2
		}
	}
}

// rotatePairs270 is rotateLuma270 over the cw x ch grid of chroma pairs.
func rotatePairs270(dst, src []byte, cw, ch int) {
	idx := 0
	for bx := cw - 1; bx >= 0; bx-- {
		for by := 0; by < ch; by++ {
			s := 2 * (by*cw + bx)
			dst[idx] = src[s]
			dst[idx+1] = src[s+1]
			idx += 2
		}
	}
}

// reversePairs reverses the order of chroma pairs without swapping the
// two samples inside a pair.
func reversePairs(dst, src []byte) {
	n := len(src)
	for i := 0; i+1 < n; i += 2 {
		dst[i] = src[n-2-i]
		dst[i+1] = src[n-1-i]
	}
}

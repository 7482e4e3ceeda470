package snapshot

import "fmt"

// I420ToSemiPlanar repacks an I420 frame into dst as a contiguous
// semi-planar buffer. format selects the chroma order: NV12 writes U then V,
// NV21 writes V then U. dst must be exactly SemiPlanarSize(width, height)
// bytes. Row padding in the source planes is dropped.
func I420ToSemiPlanar(dst, y []byte, strideY int, u []byte, strideU int, v []byte, strideV int,
	width, height int, format PixelFormat) error {

	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidArgument, width, height)
	}
	if !format.SemiPlanar() {
		return fmt.Errorf("%w: %v is not a semi-planar format", ErrInvalidArgument, format)
	}
	if len(dst) != SemiPlanarSize(width, height) {
		return fmt.Errorf("%w: destination is %d bytes, want %d", ErrInvalidArgument, len(dst), SemiPlanarSize(width, height))
	}

	cw, ch := ChromaSize(width, height)
	if err := checkPlane("Y", y, strideY, width, height); err != nil {
		return err
	}
	if err := checkPlane("U", u, strideU, cw, ch); err != nil {
		return err
	}
	if err := checkPlane("V", v, strideV, cw, ch); err != nil {
		return err
	}

	// Luma
	for row := 0; row < height; row++ {
		copy(dst[row*width:(row+1)*width], y[row*strideY:row*strideY+width])
	}

	first, second := u, v
	firstStride, secondStride := strideU, strideV
	if format == PixelFormatNV21 {
		first, second = v, u
		firstStride, secondStride = strideV, strideU
	}

	// Interleaved chroma
	idx := width * height
	for row := 0; row < ch; row++ {
		a := first[row*firstStride : row*firstStride+cw]
		b := second[row*secondStride : row*secondStride+cw]
		for col := 0; col < cw; col++ {
			dst[idx] = a[col]
			dst[idx+1] = b[col]
			idx += 2
		}
	}
	return nil
}

// ConvertI420 converts an I420 frame to a newly allocated semi-planar image.
// The frame's rotation hint is not applied.
func ConvertI420(frame *VideoFrame, format PixelFormat) (*SemiPlanarImage, error) {
	y, sy, u, su, v, sv, err := frame.Planes()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, SemiPlanarSize(frame.Width, frame.Height))
	if err := I420ToSemiPlanar(buf, y, sy, u, su, v, sv, frame.Width, frame.Height, format); err != nil {
		return nil, err
	}
	return newSemiPlanarImage(buf, frame.Width, frame.Height, format), nil
}

// checkPlane verifies that plane holds rows x width bytes at the given stride.
// The last row may omit trailing padding.
func checkPlane(name string, plane []byte, stride, width, rows int) error {
	if stride < width {
		return fmt.Errorf("%w: %s stride %d is less than plane width %d", ErrInvalidArgument, name, stride, width)
	}
	if need := (rows-1)*stride + width; len(plane) < need {
		return fmt.Errorf("%w: %s plane is %d bytes, need at least %d", ErrInvalidArgument, name, len(plane), need)
	}
	return nil
}

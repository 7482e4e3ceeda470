package snapshot

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
)

// MaxJPEGQuality is the quality used for snapshots.
const MaxJPEGQuality = 100

// MaxJPEGDimension is the largest width or height a baseline JPEG frame
// header can carry.
const MaxJPEGDimension = 65535

// JPEGEncoder compresses a semi-planar image into a byte sink.
type JPEGEncoder interface {
	// Encode writes the crop region of img as JPEG to w.
	// Argument problems are reported wrapping ErrInvalidArgument.
	Encode(w io.Writer, img *SemiPlanarImage, crop image.Rectangle, quality int) error
}

// YCbCrJPEGEncoder encodes NV12/NV21 buffers with image/jpeg.
type YCbCrJPEGEncoder struct{}

// NewJPEGEncoder returns the default JPEG encoder.
func NewJPEGEncoder() *YCbCrJPEGEncoder {
	return &YCbCrJPEGEncoder{}
}

// Encode implements JPEGEncoder.
func (e *YCbCrJPEGEncoder) Encode(w io.Writer, img *SemiPlanarImage, crop image.Rectangle, quality int) error {
	if quality < 0 || quality > MaxJPEGQuality {
		return fmt.Errorf("%w: quality %d outside 0..%d", ErrInvalidArgument, quality, MaxJPEGQuality)
	}
	if img != nil && (img.Width > MaxJPEGDimension || img.Height > MaxJPEGDimension) {
		return fmt.Errorf("%w: %dx%d exceeds JPEG limit %d", ErrInvalidArgument, img.Width, img.Height, MaxJPEGDimension)
	}
	ycbcr, err := ToYCbCr(img)
	if err != nil {
		return err
	}
	if crop.Empty() || !crop.In(ycbcr.Rect) {
		return fmt.Errorf("%w: crop %v not inside %v", ErrInvalidArgument, crop, ycbcr.Rect)
	}

	var out image.Image = ycbcr
	if crop != ycbcr.Rect {
		out = ycbcr.SubImage(crop)
	}
	// image/jpeg treats anything below 1 as 1.
	return jpeg.Encode(w, out, &jpeg.Options{Quality: quality})
}

// ToYCbCr splits the interleaved chroma of a semi-planar image into an
// image.YCbCr with 4:2:0 subsampling. Luma is shared, chroma is copied.
func ToYCbCr(img *SemiPlanarImage) (*image.YCbCr, error) {
	if !img.Format.SemiPlanar() {
		return nil, fmt.Errorf("%w: cannot encode %v", ErrInvalidArgument, img.Format)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidArgument, img.Width, img.Height)
	}
	if len(img.Data) != SemiPlanarSize(img.Width, img.Height) {
		return nil, fmt.Errorf("%w: buffer is %d bytes, want %d", ErrInvalidArgument, len(img.Data), SemiPlanarSize(img.Width, img.Height))
	}

	cw, ch := ChromaSize(img.Width, img.Height)
	cb := make([]byte, cw*ch)
	cr := make([]byte, cw*ch)

	chroma := img.ChromaPlane()
	cbOff, crOff := 0, 1
	if img.Format == PixelFormatNV21 {
		cbOff, crOff = 1, 0
	}
	for i := range cb {
		cb[i] = chroma[2*i+cbOff]
		cr[i] = chroma[2*i+crOff]
	}

	return &image.YCbCr{
		Y:              img.LumaPlane(),
		YStride:        img.Width,
		Cb:             cb,
		Cr:             cr,
		CStride:        cw,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, img.Width, img.Height),
	}, nil
}

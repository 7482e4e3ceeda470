package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paddedI420 builds an I420 frame whose samples encode their position:
// Y = 10*y + x, U = 100 + 10*cy + cx, V = 200 + 10*cy + cx. Padding bytes
// are 0xEE so a conversion that leaks them is easy to spot.
func paddedI420(width, height, padding int) *VideoFrame {
	f := NewI420Frame(width, height, padding)
	for i := range f.Data {
		for j := range f.Data[i] {
			f.Data[i][j] = 0xEE
		}
	}
	cw, ch := ChromaSize(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			f.Data[0][y*f.Stride[0]+x] = byte(10*y + x)
		}
	}
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			f.Data[1][y*f.Stride[1]+x] = byte(100 + 10*y + x)
			f.Data[2][y*f.Stride[2]+x] = byte(200 + 10*y + x)
		}
	}
	return f
}

func TestI420ToSemiPlanar_NV12(t *testing.T) {
	f := paddedI420(4, 2, 3)
	img, err := ConvertI420(f, PixelFormatNV12)
	require.NoError(t, err)

	want := []byte{
		0, 1, 2, 3,
		10, 11, 12, 13,
		100, 200, 101, 201,
	}
	assert.Equal(t, want, img.Data)
	assert.Equal(t, PixelFormatNV12, img.Format)
	assert.Equal(t, [3]int{4, 2, 2}, img.Strides)
}

func TestI420ToSemiPlanar_NV21(t *testing.T) {
	f := paddedI420(4, 2, 0)
	img, err := ConvertI420(f, PixelFormatNV21)
	require.NoError(t, err)

	assert.Equal(t, []byte{200, 100, 201, 101}, img.ChromaPlane())
	assert.Equal(t, []byte{0, 1, 2, 3, 10, 11, 12, 13}, img.LumaPlane())
}

func TestI420ToSemiPlanar_SizeInvariant(t *testing.T) {
	for _, dim := range [][2]int{{2, 2}, {4, 2}, {3, 3}, {5, 7}, {16, 9}, {1, 1}, {640, 480}} {
		w, h := dim[0], dim[1]
		for _, padding := range []int{0, 5} {
			img, err := ConvertI420(paddedI420(w, h, padding), PixelFormatNV21)
			require.NoError(t, err, "%dx%d", w, h)
			cw, ch := (w+1)/2, (h+1)/2
			assert.Len(t, img.Data, w*h+2*cw*ch, "%dx%d padding %d", w, h, padding)
			assert.NotContains(t, img.Data[:min(len(img.Data), 200)], byte(0xEE), "padding leaked for %dx%d", w, h)
		}
	}
}

func TestI420ToSemiPlanar_OddDimensions(t *testing.T) {
	f := paddedI420(3, 3, 1)
	img, err := ConvertI420(f, PixelFormatNV12)
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 1, 2, 10, 11, 12, 20, 21, 22}, img.LumaPlane())
	assert.Equal(t, []byte{100, 200, 101, 201, 110, 210, 111, 211}, img.ChromaPlane())
}

func TestI420ToSemiPlanar_Validation(t *testing.T) {
	y := make([]byte, 16)
	c := make([]byte, 4)

	tests := []struct {
		name string
		run  func() error
	}{
		{"wrong dst size", func() error {
			return I420ToSemiPlanar(make([]byte, 10), y, 4, c, 2, c, 2, 4, 4, PixelFormatNV12)
		}},
		{"planar target", func() error {
			return I420ToSemiPlanar(make([]byte, 24), y, 4, c, 2, c, 2, 4, 4, PixelFormatI420)
		}},
		{"stride below width", func() error {
			return I420ToSemiPlanar(make([]byte, 24), y, 3, c, 2, c, 2, 4, 4, PixelFormatNV12)
		}},
		{"short chroma plane", func() error {
			return I420ToSemiPlanar(make([]byte, 24), y, 4, c[:3], 2, c, 2, 4, 4, PixelFormatNV12)
		}},
		{"zero size", func() error {
			return I420ToSemiPlanar(nil, nil, 0, nil, 0, nil, 0, 0, 0, PixelFormatNV12)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), ErrInvalidArgument)
		})
	}
}

func TestI420ToSemiPlanar_LastRowWithoutPadding(t *testing.T) {
	// Some producers trim the padding after the final row.
	y := make([]byte, 6*1+4) // stride 6, two rows of width 4
	u := []byte{1, 2}
	v := []byte{3, 4}
	dst := make([]byte, SemiPlanarSize(4, 2))
	require.NoError(t, I420ToSemiPlanar(dst, y, 6, u, 2, v, 2, 4, 2, PixelFormatNV21))
	assert.Equal(t, []byte{3, 1, 4, 2}, dst[8:])
}

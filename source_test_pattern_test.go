package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTestPatternSource_Defaults(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{})

	cfg := source.Config()
	if cfg.Width != 1280 || cfg.Height != 720 {
		t.Errorf("Default dimensions = %dx%d, want 1280x720", cfg.Width, cfg.Height)
	}
	if cfg.FPS != 30 {
		t.Errorf("Default FPS = %d, want 30", cfg.FPS)
	}
	if cfg.Format != PixelFormatI420 {
		t.Errorf("Default format = %v, want I420", cfg.Format)
	}
	if cfg.SourceType != SourceTypeTestPattern {
		t.Errorf("SourceType = %v, want TestPattern", cfg.SourceType)
	}
}

func TestTestPatternSource_StartStop(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{Width: 320, Height: 240, FPS: 30})
	ctx := context.Background()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := source.Start(ctx); err == nil {
		t.Error("Double start should fail")
	}
	if err := source.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := source.Stop(); err != nil {
		t.Errorf("Double stop should not fail: %v", err)
	}
}

func TestTestPatternSource_ReadFrame(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{
		Width:    320,
		Height:   240,
		FPS:      30,
		Rotation: Rotation270,
		Padding:  12,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer source.Close()

	frame, err := source.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	defer frame.Release()

	if frame.Width != 320 || frame.Height != 240 {
		t.Errorf("Frame dimensions: %dx%d, want 320x240", frame.Width, frame.Height)
	}
	if frame.Format != PixelFormatI420 {
		t.Errorf("Frame format: %v, want I420", frame.Format)
	}
	if frame.Rotation != Rotation270 {
		t.Errorf("Frame rotation: %v, want 270°", frame.Rotation)
	}
	if frame.Stride[0] != 332 || frame.Stride[1] != 172 {
		t.Errorf("Strides: %v, want [332 172 172]", frame.Stride)
	}
	if len(frame.Data[0]) != 332*240 {
		t.Errorf("Y plane size: %d, want %d", len(frame.Data[0]), 332*240)
	}
	if frame.Timestamp <= 0 {
		t.Error("Frame timestamp should be positive")
	}
}

func TestTestPatternSource_Callback(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{Width: 320, Height: 240, FPS: 30})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frameReceived := make(chan *VideoFrame, 1)
	source.SetCallback(func(frame *VideoFrame) {
		select {
		case frameReceived <- frame:
		default:
			frame.Release()
		}
	})

	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer source.Close()

	select {
	case frame := <-frameReceived:
		if frame.Width != 320 || frame.Height != 240 {
			t.Errorf("Callback frame dimensions: %dx%d", frame.Width, frame.Height)
		}
		frame.Release()
	case <-ctx.Done():
		t.Fatal("Timeout waiting for callback frame")
	}
}

func TestTestPatternSource_AllPatterns(t *testing.T) {
	patterns := []PatternType{
		PatternColorBars,
		PatternGradient,
		PatternCheckerboard,
		PatternSolidColor,
		PatternQuadrants,
	}

	for _, pattern := range patterns {
		t.Run(pattern.String(), func(t *testing.T) {
			source := NewTestPatternSource(TestPatternConfig{
				Width:   33,
				Height:  17,
				Pattern: pattern,
				Padding: 3,
				SolidR:  255,
				SolidG:  128,
				SolidB:  64,
			})
			frame := source.Generate()
			defer frame.Release()

			img, err := ConvertI420(frame, PixelFormatNV21)
			if err != nil {
				t.Fatalf("ConvertI420 failed: %v", err)
			}
			if len(img.Data) != SemiPlanarSize(33, 17) {
				t.Errorf("Converted size %d, want %d", len(img.Data), SemiPlanarSize(33, 17))
			}

			parsed, err := ParsePatternType(pattern.String())
			if err != nil || parsed != pattern {
				t.Errorf("ParsePatternType(%q) = %v, %v", pattern.String(), parsed, err)
			}
		})
	}

	if _, err := ParsePatternType("Plasma"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParsePatternType(unknown) error = %v, want ErrInvalidArgument", err)
	}
}

func TestTestPatternSource_Quadrants(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{Width: 8, Height: 8, Pattern: PatternQuadrants, Padding: 4})
	frame := source.Generate()
	defer frame.Release()

	yp, sy, _, _, vp, sv, _ := frame.Planes()
	redY, _, redV := rgbToYUV(255, 0, 0)
	whiteY, _, _ := rgbToYUV(255, 255, 255)

	if yp[0] != redY {
		t.Errorf("Top-left luma = %d, want red %d", yp[0], redY)
	}
	if vp[0] != redV {
		t.Errorf("Top-left Cr = %d, want red %d", vp[0], redV)
	}
	if got := yp[7*sy+7]; got != whiteY {
		t.Errorf("Bottom-right luma = %d, want white %d", got, whiteY)
	}
	if sv != 8 {
		t.Errorf("Chroma stride = %d, want 8", sv)
	}
	// Padding bytes are never written.
	for i := 8; i < sy; i++ {
		if yp[i] != 0 {
			t.Errorf("Padding byte %d written: %v", i, yp[:sy])
		}
	}
}

func TestTestPatternSource_FrameTiming(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{Width: 320, Height: 240, FPS: 60})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer source.Close()

	var timestamps []int64
	for i := 0; i < 10; i++ {
		frame, err := source.ReadFrame(ctx)
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		timestamps = append(timestamps, frame.Timestamp)
		frame.Release()
	}

	for i := 1; i < len(timestamps); i++ {
		if timestamps[i] <= timestamps[i-1] {
			t.Errorf("Timestamps not increasing: %d <= %d", timestamps[i], timestamps[i-1])
		}
	}
}

func TestTestPatternSource_ReadAfterClose(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{Width: 64, Height: 64})
	if err := source.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := source.ReadFrame(context.Background()); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("ReadFrame after Close = %v, want ErrSourceClosed", err)
	}
}

func TestTestPatternSource_RGBToYUV(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		y, u, v uint8
	}{
		{"white", 255, 255, 255, 255, 128, 128},
		{"black", 0, 0, 0, 0, 128, 128},
		{"red", 255, 0, 0, 76, 85, 255},
		{"green", 0, 255, 0, 150, 44, 21},
		{"blue", 0, 0, 255, 29, 255, 107},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, u, v := rgbToYUV(tt.r, tt.g, tt.b)
			if absDiff(y, tt.y) > 1 || absDiff(u, tt.u) > 1 || absDiff(v, tt.v) > 1 {
				t.Errorf("rgbToYUV(%d,%d,%d) = (%d,%d,%d), want ~(%d,%d,%d)",
					tt.r, tt.g, tt.b, y, u, v, tt.y, tt.u, tt.v)
			}
		})
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestTestPatternSource_Registry(t *testing.T) {
	if !IsVideoSourceAvailable(SourceTypeTestPattern) {
		t.Error("TestPattern source should be registered")
	}

	source, err := CreateVideoSource(SourceTypeTestPattern, nil)
	if err != nil {
		t.Fatalf("CreateVideoSource failed: %v", err)
	}
	defer source.Close()

	if cfg := source.Config(); cfg.SourceType != SourceTypeTestPattern {
		t.Errorf("SourceType = %v, want TestPattern", cfg.SourceType)
	}

	if _, err := CreateVideoSource(SourceTypeCustom, nil); !errors.Is(err, ErrNotSupported) {
		t.Errorf("CreateVideoSource(Custom) error = %v, want ErrNotSupported", err)
	}

	types := AvailableVideoSources()
	if len(types) < 2 || types[0] != SourceTypeTestPattern || types[1] != SourceTypeRTP {
		t.Errorf("AvailableVideoSources = %v", types)
	}
}

func BenchmarkTestPatternSource_Generate(b *testing.B) {
	source := NewTestPatternSource(TestPatternConfig{
		Width:   1280,
		Height:  720,
		Pattern: PatternColorBars,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		source.Generate().Release()
	}
}

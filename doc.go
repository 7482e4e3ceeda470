// Package snapshot captures a single frame from a live video track and
// writes it to disk as an upright JPEG.
//
// Key pieces include:
//   - VideoTrack/VideoSink subscriptions with a per-track TaskQueue
//   - FrameCapturer, a one-shot sink, and the blocking Capture helper
//   - I420 to NV12/NV21 repacking and 0/90/180/270 degree rotation of
//     semi-planar 4:2:0 buffers
//   - A JPEG boundary built on image/jpeg with atomic file writes
//   - Test pattern and RFC 4175 raw-video RTP sources
//
// # Architecture
//
//	VideoSource -> SourceTrack -> FrameCapturer
//	FrameCapturer: I420 -> NV21 -> Rotate(frame.Rotation) -> JPEGEncoder -> file
//
// The transform pipeline runs synchronously on the goroutine that
// delivered the frame. Only unsubscription is deferred, posted to the
// track's executor.
//
// # Buffers
//
// A semi-planar buffer for a W x H frame is W*H luma bytes followed by
// ceil(W/2)*ceil(H/2) interleaved chroma pairs. That size is the same
// before and after every transform; rotation allocates one new buffer of
// the same length and swaps the logical width and height for 90 and 270.
//
// # Errors
//
// Capture results are nil or a *CaptureError whose Kind mirrors the
// failure: ErrorKindIO for filesystem problems, ErrorKindInvalidArgument
// for encoder argument errors, ErrorKindCanceled when no frame arrived.
// An invalid rotation angle is a programming error and panics.
package snapshot

package snapshot

import (
	"fmt"
	"net"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// Re-export pion/rtp types for convenience
type (
	// RTPPacket is an alias to pion's rtp.Packet
	RTPPacket = rtp.Packet

	// RTPHeader is an alias to pion's rtp.Header
	RTPHeader = rtp.Header
)

// RTP header extension IDs used by this package.
const (
	// ExtensionIDVideoOrientation is the default one-byte ID for the
	// video-orientation (CVO) extension.
	ExtensionIDVideoOrientation = 4
)

// OrientationExtensionID maps a configured CVO extension ID to the wire ID:
// negative disables the extension (0), zero selects
// ExtensionIDVideoOrientation and 1..14 are used as given. Anything above
// the one-byte header range is an ErrInvalidArgument.
func OrientationExtensionID(configured int) (uint8, error) {
	switch {
	case configured < 0:
		return 0, nil
	case configured == 0:
		return ExtensionIDVideoOrientation, nil
	case configured <= 14:
		return uint8(configured), nil
	}
	return 0, fmt.Errorf("%w: extension ID %d outside 1..14", ErrInvalidArgument, configured)
}

// Default MTU for RTP packets (UDP safe)
const DefaultMTU = 1200

// VideoOrientation represents the CVO (Coordination of Video Orientation) extension.
// This is not provided by pion/rtp, so we keep our own implementation.
type VideoOrientation struct {
	CameraBackFacing bool     // true = back camera, false = front camera
	FlipHorizontal   bool     // Flip horizontally
	Rotation         Rotation // Clockwise rotation
}

// Marshal returns the extension payload bytes.
func (v VideoOrientation) Marshal() []byte {
	var val uint8
	if v.CameraBackFacing {
		val |= 0x08
	}
	if v.FlipHorizontal {
		val |= 0x04
	}
	switch v.Rotation {
	case Rotation90:
		val |= 0x01
	case Rotation180:
		val |= 0x02
	case Rotation270:
		val |= 0x03
	}
	return []byte{val}
}

// Unmarshal parses a video orientation extension.
func (v *VideoOrientation) Unmarshal(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty video orientation data")
	}
	b := data[0]
	v.CameraBackFacing = (b & 0x08) != 0
	v.FlipHorizontal = (b & 0x04) != 0
	switch b & 0x03 {
	case 1:
		v.Rotation = Rotation90
	case 2:
		v.Rotation = Rotation180
	case 3:
		v.Rotation = Rotation270
	default:
		v.Rotation = Rotation0
	}
	return nil
}

// RTPReader is an interface for reading RTP packets.
type RTPReader interface {
	// ReadRTP reads the next RTP packet. The packet may reference an
	// internal buffer that is reused by the next call.
	ReadRTP() (*RTPPacket, error)
}

// trackRemoteReader adapts a pion TrackRemote to RTPReader.
type trackRemoteReader struct {
	track *webrtc.TrackRemote
}

// NewTrackRemoteReader reads packets from a remote WebRTC track negotiated
// with a raw video payload format.
func NewTrackRemoteReader(track *webrtc.TrackRemote) RTPReader {
	return &trackRemoteReader{track: track}
}

func (r *trackRemoteReader) ReadRTP() (*RTPPacket, error) {
	pkt, _, err := r.track.ReadRTP()
	return pkt, err
}

// PacketConnReader reads RTP packets from a datagram connection.
type PacketConnReader struct {
	conn net.PacketConn
	buf  []byte
	pkt  rtp.Packet
}

// NewPacketConnReader reads RTP datagrams from conn.
func NewPacketConnReader(conn net.PacketConn) *PacketConnReader {
	return &PacketConnReader{conn: conn, buf: make([]byte, 65536)}
}

// ReadRTP implements RTPReader. Datagrams that are not valid RTP are skipped.
func (r *PacketConnReader) ReadRTP() (*RTPPacket, error) {
	for {
		n, _, err := r.conn.ReadFrom(r.buf)
		if err != nil {
			return nil, err
		}
		if err := r.pkt.Unmarshal(r.buf[:n]); err != nil {
			continue
		}
		return &r.pkt, nil
	}
}

// Close closes the underlying connection.
func (r *PacketConnReader) Close() error {
	return r.conn.Close()
}

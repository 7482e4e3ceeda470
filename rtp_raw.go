package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/rtp"
)

// RFC 4175 uncompressed video, sampling YCbCr-4:2:0, depth 8.
//
// Each pgroup covers a 2x2 pixel block and carries Y00 Y01 Y10 Y11 Cb Cr.
// A line header's line number names the top row of the covered row pair and
// its offset is the left pixel column of the first pgroup.
const (
	rawPgroupSize     = 6
	rawPgroupPixels   = 2
	rawLineHeaderSize = 6
	rawExtSeqSize     = 2

	// RawVideoClockRate is the RTP clock rate for raw video.
	RawVideoClockRate = 90000
	// RawVideoMimeType is the media subtype for RFC 4175 payloads.
	RawVideoMimeType = "video/raw"
)

// ErrMalformedPacket indicates an RTP payload that violates the raw video format.
var ErrMalformedPacket = errors.New("malformed raw video packet")

// RawVideoPacketizer splits I420 frames into RFC 4175 RTP packets.
type RawVideoPacketizer struct {
	ssrc        uint32
	payloadType uint8
	mtu         int
	extID       uint8
	sequencer   rtp.Sequencer
	mu          sync.Mutex
}

// NewRawVideoPacketizer creates a raw video packetizer. The frame rotation is
// carried in a CVO extension with ID ExtensionIDVideoOrientation.
func NewRawVideoPacketizer(ssrc uint32, pt uint8, mtu int) *RawVideoPacketizer {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	return &RawVideoPacketizer{
		ssrc:        ssrc,
		payloadType: pt,
		mtu:         mtu,
		extID:       ExtensionIDVideoOrientation,
		sequencer:   rtp.NewRandomSequencer(),
	}
}

// SetOrientationExtensionID changes the CVO extension ID (0 disables it).
func (p *RawVideoPacketizer) SetOrientationExtensionID(id uint8) {
	p.mu.Lock()
	p.extID = id
	p.mu.Unlock()
}

// Packetize converts an I420 frame to RTP packets. The last packet has the
// marker bit set and carries the orientation extension.
func (p *RawVideoPacketizer) Packetize(frame *VideoFrame, timestamp uint32) ([]*RTPPacket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	yp, sy, up, su, vp, sv, err := frame.Planes()
	if err != nil {
		return nil, err
	}
	if frame.Width%2 != 0 || frame.Height%2 != 0 {
		return nil, fmt.Errorf("%w: raw 4:2:0 video needs even dimensions, got %dx%d", ErrInvalidArgument, frame.Width, frame.Height)
	}

	// RTP header, CVO extension block and one line header per packet.
	overhead := 12 + 8 + rawExtSeqSize + rawLineHeaderSize
	maxGroups := (p.mtu - overhead) / rawPgroupSize
	if maxGroups < 1 {
		return nil, fmt.Errorf("%w: mtu %d too small", ErrInvalidArgument, p.mtu)
	}

	var packets []*RTPPacket
	for y := 0; y < frame.Height; y += 2 {
		for x := 0; x < frame.Width; {
			groups := min((frame.Width-x)/rawPgroupPixels, maxGroups)
			payload := make([]byte, rawExtSeqSize+rawLineHeaderSize+groups*rawPgroupSize)

			seq := p.sequencer.NextSequenceNumber()
			binary.BigEndian.PutUint16(payload[0:], uint16(p.sequencer.RollOverCount()))
			binary.BigEndian.PutUint16(payload[2:], uint16(groups*rawPgroupSize))
			binary.BigEndian.PutUint16(payload[4:], uint16(y)&0x7fff)
			binary.BigEndian.PutUint16(payload[6:], uint16(x)&0x7fff)

			data := payload[rawExtSeqSize+rawLineHeaderSize:]
			for g := 0; g < groups; g++ {
				px := x + g*rawPgroupPixels
				pg := data[g*rawPgroupSize:]
				pg[0] = yp[y*sy+px]
				pg[1] = yp[y*sy+px+1]
				pg[2] = yp[(y+1)*sy+px]
				pg[3] = yp[(y+1)*sy+px+1]
				pg[4] = up[(y/2)*su+px/2]
				pg[5] = vp[(y/2)*sv+px/2]
			}

			packets = append(packets, &RTPPacket{
				Header: rtp.Header{
					Version:        2,
					PayloadType:    p.payloadType,
					SequenceNumber: seq,
					Timestamp:      timestamp,
					SSRC:           p.ssrc,
				},
				Payload: payload,
			})
			x += groups * rawPgroupPixels
		}
	}

	last := packets[len(packets)-1]
	last.Header.Marker = true
	if p.extID != 0 {
		cvo := VideoOrientation{Rotation: frame.Rotation}
		if err := last.Header.SetExtension(p.extID, cvo.Marshal()); err != nil {
			return nil, fmt.Errorf("set orientation extension: %w", err)
		}
	}
	return packets, nil
}

// RawVideoDepacketizer reassembles RFC 4175 packets into I420 frames.
//
// Frames are written into pooled buffers; regions covered by lost packets
// keep whatever the buffer held before.
type RawVideoDepacketizer struct {
	width, height int
	extID         uint8
	pool          *FramePool

	frame     *VideoFrame
	timestamp uint32
	rotation  Rotation
	mu        sync.Mutex
}

// NewRawVideoDepacketizer creates a depacketizer for width x height frames.
// The dimensions come from session signalling, not from the packets.
func NewRawVideoDepacketizer(width, height int) (*RawVideoDepacketizer, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("%w: raw 4:2:0 video needs positive even dimensions, got %dx%d", ErrInvalidArgument, width, height)
	}
	return &RawVideoDepacketizer{
		width:  width,
		height: height,
		extID:  ExtensionIDVideoOrientation,
		pool:   NewFramePool(width, height, 0),
	}, nil
}

// SetOrientationExtensionID changes the CVO extension ID (0 disables it).
func (d *RawVideoDepacketizer) SetOrientationExtensionID(id uint8) {
	d.mu.Lock()
	d.extID = id
	d.mu.Unlock()
}

// Depacketize processes a packet and returns a complete frame when the
// marker bit is seen. The caller owns one reference to the returned frame.
func (d *RawVideoDepacketizer) Depacketize(packet *RTPPacket) (*VideoFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Handle timestamp changes (new frame started)
	if d.frame != nil && d.timestamp != packet.Header.Timestamp {
		d.frame.Release()
		d.frame = nil
	}
	if d.frame == nil {
		d.frame = d.pool.Get()
		d.timestamp = packet.Header.Timestamp
		d.rotation = Rotation0
	}

	if d.extID != 0 {
		if ext := packet.Header.GetExtension(d.extID); ext != nil {
			var cvo VideoOrientation
			if err := cvo.Unmarshal(ext); err == nil {
				d.rotation = cvo.Rotation
			}
		}
	}

	if err := d.unpack(packet.Payload); err != nil {
		return nil, err
	}

	if !packet.Header.Marker {
		return nil, nil
	}
	frame := d.frame
	d.frame = nil
	frame.Rotation = d.rotation
	frame.Timestamp = int64(d.timestamp) * 1e9 / RawVideoClockRate
	return frame, nil
}

// Reset drops any partially assembled frame.
func (d *RawVideoDepacketizer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frame != nil {
		d.frame.Release()
		d.frame = nil
	}
}

type rawSegment struct {
	length, line, offset int
}

func (d *RawVideoDepacketizer) unpack(payload []byte) error {
	if len(payload) < rawExtSeqSize+rawLineHeaderSize {
		return fmt.Errorf("%w: payload of %d bytes", ErrMalformedPacket, len(payload))
	}
	pos := rawExtSeqSize

	var segs []rawSegment
	for {
		if pos+rawLineHeaderSize > len(payload) {
			return fmt.Errorf("%w: truncated line header", ErrMalformedPacket)
		}
		h := payload[pos : pos+rawLineHeaderSize]
		pos += rawLineHeaderSize
		seg := rawSegment{
			length: int(binary.BigEndian.Uint16(h[0:])),
			line:   int(binary.BigEndian.Uint16(h[2:]) & 0x7fff),
			offset: int(binary.BigEndian.Uint16(h[4:]) & 0x7fff),
		}
		if seg.length%rawPgroupSize != 0 || seg.line%2 != 0 || seg.offset%2 != 0 ||
			seg.line+1 >= d.height || seg.offset+seg.length/rawPgroupSize*rawPgroupPixels > d.width {
			return fmt.Errorf("%w: segment line %d offset %d length %d outside %dx%d",
				ErrMalformedPacket, seg.line, seg.offset, seg.length, d.width, d.height)
		}
		segs = append(segs, seg)
		if h[4]&0x80 == 0 {
			break
		}
	}

	yp, sy, up, su, vp, sv, _ := d.frame.Planes()
	for _, seg := range segs {
		if pos+seg.length > len(payload) {
			return fmt.Errorf("%w: segment data truncated", ErrMalformedPacket)
		}
		data := payload[pos : pos+seg.length]
		pos += seg.length

		y := seg.line
		for g := 0; g < seg.length/rawPgroupSize; g++ {
			px := seg.offset + g*rawPgroupPixels
			pg := data[g*rawPgroupSize:]
			yp[y*sy+px] = pg[0]
			yp[y*sy+px+1] = pg[1]
			yp[(y+1)*sy+px] = pg[2]
			yp[(y+1)*sy+px+1] = pg[3]
			up[(y/2)*su+px/2] = pg[4]
			vp[(y/2)*sv+px/2] = pg[5]
		}
	}
	return nil
}

package protocol

import (
	"encoding/binary"
	"math"
)

// FrameKind identifies a telemetry frame
type FrameKind uint8

const (
	FrameRealtime FrameKind = iota + 1
	FrameScalar
	FrameFloat
	FrameVersion
)

// Frame is one decoded telemetry frame
type Frame struct {
	Kind FrameKind

	// FrameRealtime
	Speed   int16
	Duty    int16
	Current int16

	// FrameScalar and FrameFloat
	Param  Param
	Scalar int16
	Float  float32
}

// FrameDecoder reassembles telemetry frames on the host. Bytes that do not
// start a frame are skipped, so the decoder resynchronises on the next
// header after line noise or a dropped byte.
type FrameDecoder struct {
	buf  [floatSize + 1]byte
	n    int
	want int

	// progress through VersionSignature
	sig int

	skipped uint32
}

// Feed consumes one byte and returns a frame once one is complete
func (d *FrameDecoder) Feed(b byte) (Frame, bool) {
	if d.want == 0 {
		return d.start(b)
	}

	d.buf[d.n] = b
	d.n++
	if d.n < d.want {
		return Frame{}, false
	}
	d.want = 0
	return d.decode(), true
}

// Skipped returns the number of bytes discarded while hunting for a header
func (d *FrameDecoder) Skipped() uint32 {
	return d.skipped
}

// Reset drops any partial frame
func (d *FrameDecoder) Reset() {
	d.n = 0
	d.want = 0
	d.sig = 0
}

func (d *FrameDecoder) start(b byte) (Frame, bool) {
	if b == VersionSignature[d.sig] {
		d.sig++
		if d.sig == len(VersionSignature) {
			d.sig = 0
			return Frame{Kind: FrameVersion}, true
		}
		return Frame{}, false
	}
	if d.sig > 0 {
		// broken signature, the bytes so far were noise
		d.skipped += uint32(d.sig)
		d.sig = 0
		if b == VersionSignature[0] {
			d.sig = 1
			return Frame{}, false
		}
	}

	switch b {
	case HeaderRealtime:
		d.want = realtimeSize
	case HeaderScalar:
		d.want = scalarSize
	case HeaderFloat:
		d.want = floatSize
	default:
		d.skipped++
		return Frame{}, false
	}
	d.buf[0] = b
	d.n = 1
	return Frame{}, false
}

func (d *FrameDecoder) decode() Frame {
	switch d.buf[0] {
	case HeaderRealtime:
		return Frame{
			Kind:    FrameRealtime,
			Speed:   int16(binary.LittleEndian.Uint16(d.buf[1:])),
			Duty:    int16(binary.LittleEndian.Uint16(d.buf[3:])),
			Current: int16(binary.LittleEndian.Uint16(d.buf[5:])),
		}
	case HeaderScalar:
		return Frame{
			Kind:   FrameScalar,
			Param:  Param(d.buf[1]),
			Scalar: int16(binary.LittleEndian.Uint16(d.buf[2:])),
		}
	default:
		return Frame{
			Kind:  FrameFloat,
			Param: Param(d.buf[1]),
			Float: math.Float32frombits(binary.LittleEndian.Uint32(d.buf[2:])),
		}
	}
}

// DecodeAll feeds data through d and returns the completed frames
func (d *FrameDecoder) DecodeAll(data []byte) []Frame {
	var frames []Frame
	for _, b := range data {
		if f, ok := d.Feed(b); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

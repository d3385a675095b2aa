package protocol

import (
	"encoding/binary"
	"math"
)

// Writer serialises telemetry into a transmit FIFO. It latches the most
// recent speed, duty cycle and current and sends them together on Send.
//
// Writer is not safe for concurrent use; callers serialise access.
type Writer struct {
	tx *FifoBuffer

	speed   int16
	duty    int16
	current int16
}

// NewWriter creates a Writer feeding tx
func NewWriter(tx *FifoBuffer) *Writer {
	return &Writer{tx: tx}
}

// TX returns the transmit FIFO
func (w *Writer) TX() *FifoBuffer {
	return w.tx
}

// SetSpeed latches the speed in RPM
func (w *Writer) SetSpeed(rpm int16) {
	w.speed = rpm
}

// SetPWM latches the duty cycle in PWM counts
func (w *Writer) SetPWM(duty int16) {
	w.duty = duty
}

// SetMotorCurrent latches the motor current in mA
func (w *Writer) SetMotorCurrent(ma int16) {
	w.current = ma
}

// Send emits a real-time frame with the latched values
func (w *Writer) Send() {
	var frame [realtimeSize]byte
	frame[0] = HeaderRealtime
	binary.LittleEndian.PutUint16(frame[1:], uint16(w.speed))
	binary.LittleEndian.PutUint16(frame[3:], uint16(w.duty))
	binary.LittleEndian.PutUint16(frame[5:], uint16(w.current))
	w.tx.Write(frame[:])
}

// SendScalar emits a scalar parameter frame
func (w *Writer) SendScalar(p Param, v int16) {
	var frame [scalarSize]byte
	frame[0] = HeaderScalar
	frame[1] = byte(p)
	binary.LittleEndian.PutUint16(frame[2:], uint16(v))
	w.tx.Write(frame[:])
}

// SendFloat emits a float parameter frame, IEEE-754 little-endian
func (w *Writer) SendFloat(p Param, v float32) {
	var frame [floatSize]byte
	frame[0] = HeaderFloat
	frame[1] = byte(p)
	binary.LittleEndian.PutUint32(frame[2:], math.Float32bits(v))
	w.tx.Write(frame[:])
}

// SendVersion emits the version signature
func (w *Writer) SendVersion() {
	w.tx.Write([]byte(VersionSignature))
}

package protocol

import (
	"bytes"
	"testing"
)

func drain(f *FifoBuffer) []byte {
	out := make([]byte, f.Available())
	f.Read(out)
	return out
}

func TestWriterRealtimeFrame(t *testing.T) {
	w := NewWriter(NewFifoBuffer(TxBufferSize))
	w.SetSpeed(2800)
	w.SetPWM(249)
	w.SetMotorCurrent(-5)
	w.Send()

	want := []byte{0x32, 0xF0, 0x0A, 0xF9, 0x00, 0xFB, 0xFF}
	if got := drain(w.TX()); !bytes.Equal(got, want) {
		t.Errorf("realtime frame = % X, want % X", got, want)
	}
}

func TestWriterScalarAndFloat(t *testing.T) {
	w := NewWriter(NewFifoBuffer(TxBufferSize))
	w.SendScalar(ParamSetpoint, 2800)
	w.SendFloat(ParamKp, 1.0)

	want := []byte{
		0xA6, 0x02, 0xF0, 0x0A,
		0xA7, 0x06, 0x00, 0x00, 0x80, 0x3F,
	}
	if got := drain(w.TX()); !bytes.Equal(got, want) {
		t.Errorf("frames = % X, want % X", got, want)
	}
}

func TestWriterVersion(t *testing.T) {
	w := NewWriter(NewFifoBuffer(TxBufferSize))
	w.SendVersion()
	if got := string(drain(w.TX())); got != "abdE" {
		t.Errorf("version = %q, want abdE", got)
	}
}

func TestWriterOverflowDrops(t *testing.T) {
	w := NewWriter(NewFifoBuffer(TxBufferSize))
	for i := 0; i < 20; i++ {
		w.Send()
	}
	if w.TX().Available() != TxBufferSize-1 {
		t.Errorf("Expected full buffer, got %d bytes", w.TX().Available())
	}
	if w.TX().Dropped() != 20*realtimeSize-(TxBufferSize-1) {
		t.Errorf("Unexpected drop count %d", w.TX().Dropped())
	}
}

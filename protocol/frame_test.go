package protocol

import "testing"

func TestFrameDecoderRoundTrip(t *testing.T) {
	w := NewWriter(NewFifoBuffer(TxBufferSize))
	w.SetSpeed(-1234)
	w.SetPWM(3000)
	w.SetMotorCurrent(450)
	w.Send()
	w.SendScalar(ParamDir, 1)
	w.SendFloat(ParamKd, -0.02)
	w.SendVersion()

	var d FrameDecoder
	frames := d.DecodeAll(drain(w.TX()))
	if len(frames) != 4 {
		t.Fatalf("Expected 4 frames, got %d", len(frames))
	}

	rt := frames[0]
	if rt.Kind != FrameRealtime || rt.Speed != -1234 || rt.Duty != 3000 || rt.Current != 450 {
		t.Errorf("Unexpected realtime frame %+v", rt)
	}
	if frames[1].Kind != FrameScalar || frames[1].Param != ParamDir || frames[1].Scalar != 1 {
		t.Errorf("Unexpected scalar frame %+v", frames[1])
	}
	if frames[2].Kind != FrameFloat || frames[2].Param != ParamKd || frames[2].Float != -0.02 {
		t.Errorf("Unexpected float frame %+v", frames[2])
	}
	if frames[3].Kind != FrameVersion {
		t.Errorf("Expected version frame, got %+v", frames[3])
	}
	if d.Skipped() != 0 {
		t.Errorf("Expected no skipped bytes, got %d", d.Skipped())
	}
}

func TestFrameDecoderResync(t *testing.T) {
	var d FrameDecoder
	data := []byte{0x00, 0x13, 'a', 'b', 'x', 0xA6, byte(ParamSpeed), 0x10, 0x00}
	frames := d.DecodeAll(data)
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if frames[0].Kind != FrameScalar || frames[0].Scalar != 16 {
		t.Errorf("Unexpected frame %+v", frames[0])
	}
	if d.Skipped() != 5 {
		t.Errorf("Expected 5 skipped bytes, got %d", d.Skipped())
	}
}

func TestFrameDecoderRestartsSignature(t *testing.T) {
	var d FrameDecoder
	frames := d.DecodeAll([]byte("aabdE"))
	if len(frames) != 1 || frames[0].Kind != FrameVersion {
		t.Errorf("Expected version frame, got %+v", frames)
	}
}

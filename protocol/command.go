package protocol

import (
	"encoding/binary"
	"math"
)

// CommandKind identifies a decoded command
type CommandKind uint8

const (
	KindStart CommandKind = iota + 1
	KindStop
	KindSetSetpoint
	KindGetVersion
	KindSetPID
	KindChangeDirection
)

func (k CommandKind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindStop:
		return "stop"
	case KindSetSetpoint:
		return "set_setpoint"
	case KindGetVersion:
		return "get_version"
	case KindSetPID:
		return "set_pid"
	case KindChangeDirection:
		return "change_direction"
	default:
		return "unknown"
	}
}

// Command is one fully received host command
type Command struct {
	Kind     CommandKind
	Setpoint int32      // KindSetSetpoint
	Gains    [3]float32 // KindSetPID: kp, ki, kd
}

// CommandDecoder assembles commands from received bytes. Bytes that do not
// start a known command are ignored.
type CommandDecoder struct {
	cur   byte
	data  [pidPayload]byte
	index int
}

// Feed consumes one received byte. It returns a command once the command
// byte and its whole payload have arrived.
func (d *CommandDecoder) Feed(b byte) (Command, bool) {
	if d.cur == 0 {
		switch b {
		case CmdStart:
			return Command{Kind: KindStart}, true
		case CmdStop:
			return Command{Kind: KindStop}, true
		case CmdGetVersion:
			return Command{Kind: KindGetVersion}, true
		case CmdChangeDirection:
			return Command{Kind: KindChangeDirection}, true
		case CmdSetSetpoint, CmdSetPID:
			d.cur = b
			d.index = 0
		}
		return Command{}, false
	}

	d.data[d.index] = b
	d.index++

	switch d.cur {
	case CmdSetSetpoint:
		if d.index == setpointPayload {
			d.cur = 0
			return Command{
				Kind:     KindSetSetpoint,
				Setpoint: int32(binary.LittleEndian.Uint32(d.data[:4])),
			}, true
		}
	case CmdSetPID:
		if d.index == pidPayload {
			d.cur = 0
			cmd := Command{Kind: KindSetPID}
			for i := range cmd.Gains {
				cmd.Gains[i] = math.Float32frombits(binary.LittleEndian.Uint32(d.data[4*i:]))
			}
			return cmd, true
		}
	}
	return Command{}, false
}

// Reset drops a partially received command
func (d *CommandDecoder) Reset() {
	d.cur = 0
	d.index = 0
}

// EncodeStart returns the bytes of a START command
func EncodeStart() []byte { return []byte{CmdStart} }

// EncodeStop returns the bytes of a STOP command
func EncodeStop() []byte { return []byte{CmdStop} }

// EncodeGetVersion returns the bytes of a GET_VERSION command
func EncodeGetVersion() []byte { return []byte{CmdGetVersion} }

// EncodeChangeDirection returns the bytes of a CHANGE_DIRECTION command
func EncodeChangeDirection() []byte { return []byte{CmdChangeDirection} }

// EncodeSetSetpoint returns the bytes of a SET_SETPOINT command
func EncodeSetSetpoint(rpm int32) []byte {
	out := make([]byte, 1+setpointPayload)
	out[0] = CmdSetSetpoint
	binary.LittleEndian.PutUint32(out[1:], uint32(rpm))
	return out
}

// EncodeSetPID returns the bytes of a SET_PID command
func EncodeSetPID(kp, ki, kd float32) []byte {
	out := make([]byte, 1+pidPayload)
	out[0] = CmdSetPID
	for i, v := range [...]float32{kp, ki, kd} {
		binary.LittleEndian.PutUint32(out[1+4*i:], math.Float32bits(v))
	}
	return out
}

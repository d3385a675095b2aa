// Package protocol implements the byte protocol between the motor
// controller and the PC tool: single-byte commands with little-endian
// payloads in one direction, real-time and parameter frames in the other.
package protocol

// FirmwareVersion is the protocol revision reported by the controller
const FirmwareVersion = 0x03

// VersionSignature is sent in reply to CmdGetVersion, before the parameter dump
const VersionSignature = "abdE"

// Frame headers, controller -> host
const (
	HeaderRealtime = 0x32
	HeaderScalar   = 0xA6
	HeaderFloat    = 0xA7
)

// Command bytes, host -> controller
const (
	CmdStart           = 0x41 // 'A'
	CmdStop            = 0x42 // 'B'
	CmdSetSetpoint     = 0x43 // 'C' + int32
	CmdGetVersion      = 0x44 // 'D'
	CmdSetPID          = 0x45 // 'E' + 3 x float32
	CmdChangeDirection = 0x46 // 'F'
)

// Payload sizes
const (
	realtimeSize = 1 + 3*2
	scalarSize   = 1 + 1 + 2
	floatSize    = 1 + 1 + 4

	setpointPayload = 4
	pidPayload      = 12
)

// TxBufferSize is the capacity of the controller transmit ring
const TxBufferSize = 100

// Param identifies a value in scalar and float frames
type Param uint8

const (
	ParamSpeed            Param = 1
	ParamSetpoint         Param = 2
	ParamCommutationDelay Param = 3
	ParamCurrent          Param = 4
	ParamDebug            Param = 5
	ParamKp               Param = 6
	ParamKi               Param = 7
	ParamKd               Param = 8
	ParamDir              Param = 9
)

func (p Param) String() string {
	switch p {
	case ParamSpeed:
		return "speed"
	case ParamSetpoint:
		return "setpoint"
	case ParamCommutationDelay:
		return "commutation_delay"
	case ParamCurrent:
		return "current"
	case ParamDebug:
		return "debug"
	case ParamKp:
		return "kp"
	case ParamKi:
		return "ki"
	case ParamKd:
		return "kd"
	case ParamDir:
		return "dir"
	default:
		return "unknown"
	}
}

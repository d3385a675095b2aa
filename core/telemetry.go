package core

import "gobldc/protocol"

// Telemetry receives the controller's numeric reports. The byte framing
// belongs to the implementation; protocol.Writer is the serial one.
type Telemetry interface {
	SetSpeed(rpm int16)
	SetPWM(duty int16)
	SetMotorCurrent(ma int16)
	Send()
	SendScalar(p protocol.Param, v int16)
	SendFloat(p protocol.Param, v float32)
	SendVersion()
}

var _ Telemetry = (*protocol.Writer)(nil)

type nopTelemetry struct{}

func (nopTelemetry) SetSpeed(int16) {}
func (nopTelemetry) SetPWM(int16) {}
func (nopTelemetry) SetMotorCurrent(int16) {}
func (nopTelemetry) Send() {}
func (nopTelemetry) SendScalar(protocol.Param, int16) {}
func (nopTelemetry) SendFloat(protocol.Param, float32) {}
func (nopTelemetry) SendVersion() {}

// sat16 saturates v to the int16 range of the telemetry frames
func sat16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

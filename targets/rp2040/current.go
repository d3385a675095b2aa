//go:build rp2040

package main

import (
	"machine"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers/ina260"
)

// CurrentSensor reads an INA260 in the DC link. I2C cannot run from the
// PWM interrupt, so a goroutine polls the chip and the controller reads the
// cached value.
type CurrentSensor struct {
	dev   ina260.Device
	ma    atomic.Int32
	point atomic.Uint32
}

// NewCurrentSensor configures i2c and the sensor for fast conversions. It
// returns nil when no INA260 answers.
func NewCurrentSensor(i2c *machine.I2C, sda, scl machine.Pin) *CurrentSensor {
	if err := i2c.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: 400 * machine.KHz}); err != nil {
		return nil
	}
	s := &CurrentSensor{dev: ina260.New(i2c)}
	if !s.dev.Connected() {
		return nil
	}
	s.dev.Configure(ina260.Config{
		AverageMode:     ina260.AVGMODE_4,
		VoltConvTime:    ina260.CONVTIME_140USEC,
		CurrentConvTime: ina260.CONVTIME_332USEC,
		Mode:            ina260.MODE_CONTINUOUS | ina260.MODE_CURRENT,
	})
	return s
}

// Poll updates the cached current every interval, forever
func (s *CurrentSensor) Poll(interval time.Duration) {
	for {
		s.ma.Store(s.dev.Current() / 1000)
		time.Sleep(interval)
	}
}

// SetMeasurementPoint is recorded only; the INA260 converts continuously
// and cannot be synchronised to the PWM period
func (s *CurrentSensor) SetMeasurementPoint(count uint32) {
	s.point.Store(count)
}

func (s *CurrentSensor) CurrentMA() int32 {
	return s.ma.Load()
}

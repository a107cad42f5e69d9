// Package sensor samples the LSM303AGR magnetometer.
package sensor

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lsm303agr"
)

var ErrNotConnected = errors.New("lsm303agr not connected")

// gaussPerLSB is the magnetometer sensitivity, 1.5 mG/LSB.
const gaussPerLSB = 0.0015

// Sample is one raw magnetometer reading.
type Sample struct {
	X, Y, Z int32
}

// Gauss converts the sample to gauss.
func (s Sample) Gauss() (x, y, z float32) {
	return float32(s.X) * gaussPerLSB, float32(s.Y) * gaussPerLSB, float32(s.Z) * gaussPerLSB
}

func (s Sample) String() string {
	gx, gy, gz := s.Gauss()
	return fmt.Sprintf("x=%d y=%d z=%d (%.4f, %.4f, %.4f gauss)", s.X, s.Y, s.Z, gx, gy, gz)
}

// Magnetometer is the magnetic half of an LSM303AGR. Each read triggers a
// single conversion. Only a failed trigger write is reported; the driver
// ignores errors on the data read, which can then return the previous bytes.
type Magnetometer struct {
	dev  *lsm303agr.Device
	last Sample
}

var _ drivers.Sensor = (*Magnetometer)(nil)

// Open checks that the chip answers on bus and configures it.
func Open(bus drivers.I2C) (*Magnetometer, error) {
	dev := lsm303agr.New(bus)
	err := dev.Configure(lsm303agr.Configuration{
		MagSystemMode: lsm303agr.MAG_SYSTEM_SINGLE,
		MagDataRate:   lsm303agr.MAG_DATARATE_10HZ,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return &Magnetometer{dev: dev}, nil
}

// Update reads the magnetic field if which asks for it.
func (m *Magnetometer) Update(which drivers.Measurement) error {
	if which&drivers.MagneticField == 0 {
		return nil
	}
	x, y, z, err := m.dev.ReadMagneticField()
	if err != nil {
		return err
	}
	m.last = Sample{X: x, Y: y, Z: z}
	return nil
}

// Field returns the reading of the last successful Update.
func (m *Magnetometer) Field() Sample { return m.last }

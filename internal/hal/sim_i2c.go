package hal

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNoAck = errors.New("i2c: no acknowledge")

const (
	lsmAccelAddr = 0x19
	lsmMagAddr   = 0x1E

	lsmAutoInc  = 0x80
	lsmMagOutXL = 0x68
)

// SimLSM303AGR emulates the register file of an LSM303AGR accelerometer and
// magnetometer sitting alone on an I2C bus.
type SimLSM303AGR struct {
	mu    sync.Mutex
	regs  map[uint16]*[128]byte
	fails int
	txs   int
}

func NewSimLSM303AGR() *SimLSM303AGR {
	d := &SimLSM303AGR{
		regs: map[uint16]*[128]byte{
			lsmAccelAddr: {},
			lsmMagAddr:   {},
		},
	}
	d.regs[lsmAccelAddr][0x0F] = 0x33
	d.regs[lsmMagAddr][0x4F] = 0x40
	return d
}

// SetField sets the raw magnetometer output registers.
func (d *SimLSM303AGR) SetField(x, y, z int16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.regs[lsmMagAddr]
	for i, v := range []int16{x, y, z} {
		m[lsmMagOutXL+2*i] = byte(uint16(v))
		m[lsmMagOutXL+2*i+1] = byte(uint16(v) >> 8)
	}
}

// FailNext makes the next n transactions fail with ErrNoAck.
func (d *SimLSM303AGR) FailNext(n int) {
	d.mu.Lock()
	d.fails = n
	d.mu.Unlock()
}

// Register returns the current value of a register.
func (d *SimLSM303AGR) Register(addr uint16, reg uint8) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.regs[addr]; ok {
		return m[reg&^lsmAutoInc]
	}
	return 0
}

// Transactions returns how many transactions the device has seen.
func (d *SimLSM303AGR) Transactions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.txs
}

// Tx implements drivers.I2C.
func (d *SimLSM303AGR) Tx(addr uint16, w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txs++

	if d.fails > 0 {
		d.fails--
		return fmt.Errorf("%w: addr 0x%02X", ErrNoAck, addr)
	}
	m, ok := d.regs[addr]
	if !ok {
		return fmt.Errorf("%w: addr 0x%02X", ErrNoAck, addr)
	}
	if len(w) == 0 {
		return fmt.Errorf("i2c: empty write to 0x%02X", addr)
	}

	reg := int(w[0] &^ lsmAutoInc)
	inc := w[0]&lsmAutoInc != 0
	for _, b := range w[1:] {
		m[reg%len(m)] = b
		if inc {
			reg++
		}
	}
	for i := range r {
		r[i] = m[reg%len(m)]
		if inc {
			reg++
		}
	}
	return nil
}

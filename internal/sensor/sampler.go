package sensor

import (
	"fmt"

	"tinygo.org/x/drivers"

	"ledfw/internal/hal"
	"ledfw/internal/sched"
	"ledfw/internal/timer"
)

const (
	// startupMS lets the first conversion complete after configuration.
	startupMS = 10
	retryMS   = 10
)

// Sampler is the magnetometer task: it reads and logs the field once per
// period.
type Sampler struct {
	sensor  drivers.Sensor
	field   func() Sample
	q       *timer.DeadlineQueue
	period  uint32
	retries int
	log     hal.Logger

	samples uint64
	misses  uint64
}

func NewSampler(m *Magnetometer, q *timer.DeadlineQueue, period uint32, retries int, log hal.Logger) *Sampler {
	return &Sampler{
		sensor:  m,
		field:   m.Field,
		q:       q,
		period:  period,
		retries: retries,
		log:     log,
	}
}

// Samples returns how many readings were taken.
func (s *Sampler) Samples() uint64 { return s.samples }

// Misses returns how many periods were skipped after running out of retries.
func (s *Sampler) Misses() uint64 { return s.misses }

// Read takes one reading, retrying failed bus transactions.
func (s *Sampler) Read(cx *sched.Context) (Sample, error) {
	var err error
	for attempt := 0; ; attempt++ {
		if err = s.sensor.Update(drivers.MagneticField); err == nil {
			return s.field(), nil
		}
		if attempt >= s.retries {
			return Sample{}, fmt.Errorf("after %d attempts: %w", attempt+1, err)
		}
		s.q.Delay(cx, retryMS)
	}
}

func (s *Sampler) Run(cx *sched.Context) {
	s.q.Delay(cx, startupMS)
	for {
		v, err := s.Read(cx)
		if err != nil {
			s.misses++
			hal.Logf(s.log, "[mag] [%d] sample skipped: %v", s.q.Ticker().Now(), err)
		} else {
			s.samples++
			hal.Logf(s.log, "[mag] [%d] %s", s.q.Ticker().Now(), v)
		}
		s.q.Delay(cx, s.period)
	}
}

package device

import (
	"sync"
)

// SimMotor records what it was told to do.
type SimMotor struct {
	mu        sync.Mutex
	direction int // 1 forward, -1 backward, 0 stopped
	power     float64
}

func (m *SimMotor) Forward(power float64) error  { return m.set(1, power) }
func (m *SimMotor) Backward(power float64) error { return m.set(-1, power) }
func (m *SimMotor) Stop() error                  { return m.set(0, 0) }

func (m *SimMotor) set(dir int, power float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.direction, m.power = dir, power
	return nil
}

// State returns the direction (-1, 0, 1) and power last applied.
func (m *SimMotor) State() (direction int, power float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.direction, m.power
}

// SimSwitch is a simulated on/off output or input. It serves as the blade
// relay and as the bumper.
type SimSwitch struct {
	mu sync.Mutex
	on bool
}

func (s *SimSwitch) On() error  { s.Set(true); return nil }
func (s *SimSwitch) Off() error { s.Set(false); return nil }

// Pressed implements Bumper.
func (s *SimSwitch) Pressed() (bool, error) { return s.IsOn(), nil }

// Set forces the state.
func (s *SimSwitch) Set(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = on
}

// IsOn reports the state.
func (s *SimSwitch) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

// SimThermometer returns a settable temperature.
type SimThermometer struct {
	mu sync.Mutex
	c  float64
}

func (t *SimThermometer) Celsius() (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.c, nil
}

// Set changes the reported temperature.
func (t *SimThermometer) Set(c float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c = c
}

// Sim is a complete simulated harness.
type Sim struct {
	Left, Right *SimMotor
	Work        *SimSwitch
	Bumper      *SimSwitch
	Thermometer *SimThermometer
}

// NewSim creates simulated drivers at 45 °C.
func NewSim() *Sim {
	s := &Sim{
		Left:        &SimMotor{},
		Right:       &SimMotor{},
		Work:        &SimSwitch{},
		Bumper:      &SimSwitch{},
		Thermometer: &SimThermometer{},
	}
	s.Thermometer.Set(45)
	return s
}

// Drivers returns the harness as device drivers.
func (s *Sim) Drivers() Drivers {
	return Drivers{
		Left:        s.Left,
		Right:       s.Right,
		Work:        s.Work,
		Bumper:      s.Bumper,
		Thermometer: s.Thermometer,
	}
}

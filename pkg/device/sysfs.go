package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"roktrack/pkg/config"
)

const (
	// GPIOBase is the legacy sysfs GPIO tree.
	GPIOBase = "/sys/class/gpio"
	// ThermalZone reports the SoC temperature in millidegrees.
	ThermalZone = "/sys/class/thermal/thermal_zone0/temp"

	pwmPeriod = 10 * time.Millisecond
)

// GPIO is one sysfs GPIO line.
type GPIO struct {
	dir string
}

// OpenGPIO exports pin under base if needed and sets its direction.
func OpenGPIO(base string, pin int, output bool) (*GPIO, error) {
	dir := filepath.Join(base, "gpio"+strconv.Itoa(pin))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(base, "export"), []byte(strconv.Itoa(pin)), 0o644); err != nil {
			return nil, fmt.Errorf("export gpio %d: %w", pin, err)
		}
	}
	direction := "in"
	if output {
		direction = "out"
	}
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte(direction), 0o644); err != nil {
		return nil, fmt.Errorf("gpio %d direction: %w", pin, err)
	}
	return &GPIO{dir: dir}, nil
}

// Write drives the line.
func (g *GPIO) Write(high bool) error {
	v := "0"
	if high {
		v = "1"
	}
	return os.WriteFile(filepath.Join(g.dir, "value"), []byte(v), 0o644)
}

// Read samples the line.
func (g *GPIO) Read() (bool, error) {
	b, err := os.ReadFile(filepath.Join(g.dir, "value"))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(b)) == "1", nil
}

// SoftPWM toggles a GPIO at a fixed period.
type SoftPWM struct {
	pin  *GPIO
	mu   sync.Mutex
	duty float64
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSoftPWM starts the toggling goroutine at zero duty.
func NewSoftPWM(pin *GPIO) *SoftPWM {
	p := &SoftPWM{pin: pin, done: make(chan struct{})}
	p.wg.Add(1)
	go p.loop()
	return p
}

// SetDuty sets the high fraction of each period.
func (p *SoftPWM) SetDuty(d float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.duty = clamp(d, 0, 1)
}

func (p *SoftPWM) getDuty() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

func (p *SoftPWM) loop() {
	defer p.wg.Done()
	for {
		duty := p.getDuty()
		high := time.Duration(duty * float64(pwmPeriod))
		if high > 0 {
			_ = p.pin.Write(true)
			if !p.sleep(high) {
				break
			}
		}
		if high < pwmPeriod {
			_ = p.pin.Write(false)
			if !p.sleep(pwmPeriod - high) {
				break
			}
		}
	}
	_ = p.pin.Write(false)
}

func (p *SoftPWM) sleep(d time.Duration) bool {
	select {
	case <-p.done:
		return false
	case <-time.After(d):
		return true
	}
}

// Close stops toggling and leaves the line low.
func (p *SoftPWM) Close() {
	close(p.done)
	p.wg.Wait()
}

// HBridgeMotor drives one motor through two PWM inputs.
type HBridgeMotor struct {
	in1, in2 *SoftPWM
}

func (m *HBridgeMotor) Forward(power float64) error {
	m.in1.SetDuty(power)
	m.in2.SetDuty(0)
	return nil
}

func (m *HBridgeMotor) Backward(power float64) error {
	m.in1.SetDuty(0)
	m.in2.SetDuty(power)
	return nil
}

func (m *HBridgeMotor) Stop() error {
	m.in1.SetDuty(0)
	m.in2.SetDuty(0)
	return nil
}

// RelayWork switches the blade through two control lines.
type RelayWork struct {
	pin1, pin2 *GPIO
	positive   bool // active level
}

func (w *RelayWork) On() error {
	return errors.Join(w.pin1.Write(w.positive), w.pin2.Write(!w.positive))
}

func (w *RelayWork) Off() error {
	return errors.Join(w.pin1.Write(!w.positive), w.pin2.Write(!w.positive))
}

// GPIOBumper is an active-low switch with pull-up.
type GPIOBumper struct {
	pin *GPIO
}

func (b *GPIOBumper) Pressed() (bool, error) {
	high, err := b.pin.Read()
	return !high, err
}

// SysfsThermometer reads a thermal zone file.
type SysfsThermometer struct {
	Path string
}

func (t *SysfsThermometer) Celsius() (float64, error) {
	b, err := os.ReadFile(t.Path)
	if err != nil {
		return 0, err
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("thermal zone %s: %w", t.Path, err)
	}
	return float64(milli) / 1000, nil
}

// Sysfs is the GPIO harness of a real robot.
type Sysfs struct {
	pwms    []*SoftPWM
	drivers Drivers
}

// OpenSysfs exports every configured pin under base.
func OpenSysfs(base, thermalZone string, pins config.PinConfig) (*Sysfs, error) {
	out := func(pin int) (*GPIO, error) { return OpenGPIO(base, pin, true) }

	s := &Sysfs{}
	pwm := func(pin int) (*SoftPWM, error) {
		g, err := out(pin)
		if err != nil {
			return nil, err
		}
		p := NewSoftPWM(g)
		s.pwms = append(s.pwms, p)
		return p, nil
	}

	var motors [4]*SoftPWM
	for i, pin := range []int{pins.LeftPin1, pins.LeftPin2, pins.RightPin1, pins.RightPin2} {
		p, err := pwm(pin)
		if err != nil {
			s.Close()
			return nil, err
		}
		motors[i] = p
	}
	w1, err := out(pins.Work1Pin)
	if err != nil {
		s.Close()
		return nil, err
	}
	w2, err := out(pins.Work2Pin)
	if err != nil {
		s.Close()
		return nil, err
	}
	bump, err := OpenGPIO(base, pins.BumperPin, false)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.drivers = Drivers{
		Left:        &HBridgeMotor{in1: motors[0], in2: motors[1]},
		Right:       &HBridgeMotor{in1: motors[2], in2: motors[3]},
		Work:        &RelayWork{pin1: w1, pin2: w2, positive: pins.WorkCtrlPositive},
		Bumper:      &GPIOBumper{pin: bump},
		Thermometer: &SysfsThermometer{Path: thermalZone},
	}
	return s, nil
}

// Drivers returns the opened drivers.
func (s *Sysfs) Drivers() Drivers { return s.drivers }

// Close stops every PWM line.
func (s *Sysfs) Close() {
	for _, p := range s.pwms {
		p.Close()
	}
	s.pwms = nil
}

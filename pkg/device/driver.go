package device

// DriveMotor is one track motor. Power is a duty fraction in [0, 1].
type DriveMotor interface {
	Forward(power float64) error
	Backward(power float64) error
	Stop() error
}

// WorkMotor is the blade relay.
type WorkMotor interface {
	On() error
	Off() error
}

// Bumper is the front bump switch.
type Bumper interface {
	Pressed() (bool, error)
}

// Thermometer reads the SoC temperature.
type Thermometer interface {
	Celsius() (float64, error)
}

// Drivers bundles the hardware a Device controls.
type Drivers struct {
	Left        DriveMotor
	Right       DriveMotor
	Work        WorkMotor
	Bumper      Bumper
	Thermometer Thermometer
}

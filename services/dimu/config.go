// services/dimu/config.go
package dimu

import (
	"fmt"

	"dimu-go/errcode"
	"dimu-go/types"
	"dimu-go/x/jsonx"
	"dimu-go/x/mathx"
)

// Config is supplied on "config/dimu" or built by the host CLI.
type Config struct {
	TimerHz         uint32               `json:"timer_hz" mapstructure:"timer_hz" yaml:"timer_hz"`
	CounterBits     uint                 `json:"counter_bits" mapstructure:"counter_bits" yaml:"counter_bits"`
	InnerPeriodUs   uint32               `json:"inner_period_us" mapstructure:"inner_period_us" yaml:"inner_period_us"`
	OuterPeriodUs   uint32               `json:"outer_period_us" mapstructure:"outer_period_us" yaml:"outer_period_us"`
	RoomTemp        float32              `json:"room_temp" mapstructure:"room_temp" yaml:"room_temp"`
	Gravity         float32              `json:"gravity" mapstructure:"gravity" yaml:"gravity"`
	EEPROMBlockSize int                  `json:"eeprom_block_size" mapstructure:"eeprom_block_size" yaml:"eeprom_block_size"`
	Sim             bool                 `json:"sim" mapstructure:"sim" yaml:"sim"`
	Sensors         []types.SensorConfig `json:"sensors,omitempty" mapstructure:"sensors" yaml:"sensors,omitempty"`
}

const (
	DefaultTimerHz       = 1_000_000
	DefaultCounterBits   = 16
	DefaultInnerPeriodUs = 2500
	DefaultOuterPeriodUs = 5000
	DefaultRoomTemp      = 20
	DefaultGravity       = 9.80665
	DefaultBlockSize     = 256
)

func DefaultConfig() Config {
	return Config{
		TimerHz:         DefaultTimerHz,
		CounterBits:     DefaultCounterBits,
		InnerPeriodUs:   DefaultInnerPeriodUs,
		OuterPeriodUs:   DefaultOuterPeriodUs,
		RoomTemp:        DefaultRoomTemp,
		Gravity:         DefaultGravity,
		EEPROMBlockSize: DefaultBlockSize,
	}
}

// WithDefaults fills zero fields from DefaultConfig. RoomTemp is taken as
// given since 0 °C is a valid reference.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.TimerHz == 0 {
		c.TimerHz = d.TimerHz
	}
	if c.CounterBits == 0 {
		c.CounterBits = d.CounterBits
	}
	if c.InnerPeriodUs == 0 {
		c.InnerPeriodUs = d.InnerPeriodUs
	}
	if c.OuterPeriodUs == 0 {
		c.OuterPeriodUs = d.OuterPeriodUs
	}
	if c.Gravity == 0 {
		c.Gravity = d.Gravity
	}
	if c.EEPROMBlockSize == 0 {
		c.EEPROMBlockSize = d.EEPROMBlockSize
	}
	return c
}

// InnerTicks is the periodic alarm interval in counter ticks.
func (c Config) InnerTicks() uint32 {
	return uint32(uint64(c.InnerPeriodUs) * uint64(c.TimerHz) / 1_000_000)
}

// Divider is the number of inner ticks per full update.
func (c Config) Divider() uint32 { return c.OuterPeriodUs / c.InnerPeriodUs }

func (c Config) counterMask() uint32 {
	if c.CounterBits >= 32 {
		return 0xFFFFFFFF
	}
	return 1<<c.CounterBits - 1
}

// Validate checks a config that has had defaults applied.
func (c Config) Validate() error {
	const op = "dimu.config"
	if c.CounterBits > 32 {
		return &errcode.E{C: errcode.InvalidConfig, Op: op, Msg: fmt.Sprintf("counter_bits %d", c.CounterBits)}
	}
	if c.InnerPeriodUs == 0 || c.InnerTicks() == 0 {
		return &errcode.E{C: errcode.InvalidPeriod, Op: op, Msg: "inner period is zero ticks"}
	}
	if c.InnerTicks() > c.counterMask() {
		return &errcode.E{C: errcode.InvalidPeriod, Op: op, Msg: "inner period exceeds counter range"}
	}
	if !mathx.Divides(c.InnerPeriodUs, c.OuterPeriodUs) {
		return &errcode.E{C: errcode.InvalidPeriod, Op: op,
			Msg: fmt.Sprintf("outer period %dus is not a multiple of inner %dus", c.OuterPeriodUs, c.InnerPeriodUs)}
	}
	if c.EEPROMBlockSize <= 0 {
		return &errcode.E{C: errcode.InvalidConfig, Op: op, Msg: "eeprom_block_size"}
	}
	return nil
}

// DecodeConfig turns a bus payload into a validated Config. Fields absent
// from the payload keep their defaults.
func DecodeConfig(payload any) (Config, error) {
	c := DefaultConfig()
	if err := jsonx.Decode(payload, &c); err != nil {
		return Config{}, errcode.Wrap(errcode.InvalidPayload, "dimu.config", err)
	}
	c = c.WithDefaults()
	return c, c.Validate()
}

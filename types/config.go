package types

// Service configuration supplied on "config/<key>".

type HeartbeatConfig struct {
	IntervalMs int `json:"interval_ms" mapstructure:"interval_ms" yaml:"interval_ms"`
}

type BridgeConfig struct {
	Broker   string   `json:"broker" mapstructure:"broker" yaml:"broker"`
	ClientID string   `json:"client_id" mapstructure:"client_id" yaml:"client_id"`
	Prefix   string   `json:"prefix" mapstructure:"prefix" yaml:"prefix"`
	Forward  []string `json:"forward,omitempty" mapstructure:"forward" yaml:"forward,omitempty"` // bus topics, "/" separated, wildcards allowed
	QoS      byte     `json:"qos" mapstructure:"qos" yaml:"qos"`
}

// SensorConfig selects one sensor for the driver's sensor set.
type SensorConfig struct {
	Type    string `json:"type" mapstructure:"type" yaml:"type"` // "mpu6050", "bmp280", "aht20", "sim"
	Addr    uint16 `json:"addr,omitempty" mapstructure:"addr" yaml:"addr,omitempty"`
	Bus     string `json:"bus,omitempty" mapstructure:"bus" yaml:"bus,omitempty"`
	Disable bool   `json:"disable,omitempty" mapstructure:"disable" yaml:"disable,omitempty"`
}

// LinkState is retained on "bridge/state".
type LinkState struct {
	Level  string `json:"level"`  // "up", "degraded", "error", "idle"
	Status string `json:"status"` // short code
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board name, as passed to New
// Val: raw JSON, one top-level key per section
// -----------------------------------------------------------------------------

const cfgPico = `{
  "dimu": {
      "timer_hz": 1000000,
      "counter_bits": 32,
      "inner_period_us": 2500,
      "outer_period_us": 5000,
      "room_temp": 20,
      "eeprom_block_size": 256,
      "sensors": [
          {"type": "mpu6050", "addr": 104, "bus": "i2c0"},
          {"type": "bmp280", "addr": 119, "bus": "i2c0"},
          {"type": "aht20", "addr": 56, "bus": "i2c0", "disable": true}
      ]
  },
  "heartbeat": {
      "interval_ms": 2000
  }
}`

const cfgHost = `{
  "dimu": {
      "timer_hz": 1000000,
      "counter_bits": 32,
      "inner_period_us": 2500,
      "outer_period_us": 5000,
      "room_temp": 20,
      "eeprom_block_size": 256,
      "sim": true,
      "sensors": [
          {"type": "sim"}
      ]
  },
  "heartbeat": {
      "interval_ms": 1000
  },
  "bridge": {
      "broker": "tcp://localhost:1883",
      "client_id": "dimu-host",
      "prefix": "dimu-host",
      "forward": ["dimu/state", "dimu/calib", "dimu/stats", "imu/ready/#"],
      "qos": 0
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"host": []byte(cfgHost),
}

package types

// ------------------------
// Sensor addressing
// ------------------------

// SensorType names a sensor class on the bus ("imu/ready/<sensor>/<kind>").
type SensorType string

const (
	SensorAcc  SensorType = "acc"
	SensorGyo  SensorType = "gyo"
	SensorMag  SensorType = "mag"
	SensorPres SensorType = "pres"
	SensorTemp SensorType = "temp"
	SensorDIMU SensorType = "dimu" // the digital IMU as a whole
)

// UpdateKind distinguishes the fast rate path from the full decode path.
type UpdateKind string

const (
	UpdateRate UpdateKind = "rate"
	UpdateFull UpdateKind = "full"
)

type ReadyEvent struct {
	Sensor SensorType `json:"sensor"`
	Kind   UpdateKind `json:"kind"`
	Count  uint32     `json:"count"`
}

// ------------------------
// Driver state (retained on "dimu/state")
// ------------------------

type DimuState struct {
	Level          string `json:"level"`  // "init", "running", "stopped"
	Status         string `json:"status"` // short code
	SensorsEnabled bool   `json:"sensors_enabled"`
	Sim            bool   `json:"sim"`
	TS             int64  `json:"ts_ms"`
}

// FullSample is the snapshot taken at the end of each full update.
type FullSample struct {
	Seq    uint32     `json:"seq"`
	Stamp  uint32     `json:"stamp_us"`
	Acc    [3]float32 `json:"acc"`
	Gyo    [3]float32 `json:"gyo"`
	Temp   float32    `json:"temp"`
	DTemp  float32    `json:"dtemp"`
	DTemp2 float32    `json:"dtemp2"`
	DTemp3 float32    `json:"dtemp3"`
}

// DriverStats is published on "dimu/stats".
type DriverStats struct {
	Loops          uint32 `json:"loops"`
	Wakes          uint32 `json:"wakes"`
	Coalesced      uint32 `json:"coalesced"`
	PeriodicFires  uint32 `json:"periodic_fires"`
	OneShotFires   uint32 `json:"oneshot_fires"`
	FullUpdates    uint32 `json:"full_updates"`
	CalibReads     uint32 `json:"calib_reads"`
	CalibWrites    uint32 `json:"calib_writes"`
	Tares          uint32 `json:"tares"`
	SensorsEnabled bool   `json:"sensors_enabled"`
	UptimeMs       int64  `json:"uptime_ms"`
}

// ------------------------
// Calibration
// ------------------------

type CalibOp string

const (
	CalibRead  CalibOp = "read"
	CalibWrite CalibOp = "write"
	CalibTare  CalibOp = "tare"
)

// CalibEvent is published on "dimu/calib" after each calibration operation.
type CalibEvent struct {
	Op    CalibOp `json:"op"`
	OK    bool    `json:"ok"`
	Code  string  `json:"code,omitempty"`
	Error string  `json:"error,omitempty"`
	TS    int64   `json:"ts_ms"`
}

type TareResult struct {
	AccBias [3]float32 `json:"acc_bias"`
	GyoBias [3]float32 `json:"gyo_bias"`
	Samples int        `json:"samples"`
}

// ------------------------
// Controls
// ------------------------

type SensorsSet struct {
	Enabled bool `json:"enabled"`
}

// Reply is the generic answer to a control request.
type Reply struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// services/dimu/internal/params/ids.go
package params

// ID indexes a calibration slot. The order is the persisted order.
type ID uint8

const (
	AccBiasX ID = iota
	AccBiasY
	AccBiasZ
	AccBias1X
	AccBias1Y
	AccBias1Z
	AccBias2X
	AccBias2Y
	AccBias2Z
	AccBias3X
	AccBias3Y
	AccBias3Z
	AccScalX
	AccScalY
	AccScalZ
	AccScal1X
	AccScal1Y
	AccScal1Z
	AccScal2X
	AccScal2Y
	AccScal2Z
	AccScal3X
	AccScal3Y
	AccScal3Z
	AccAlgnXY
	AccAlgnXZ
	AccAlgnYX
	AccAlgnYZ
	AccAlgnZX
	AccAlgnZY
	GyoBiasX
	GyoBiasY
	GyoBiasZ
	GyoBias1X
	GyoBias1Y
	GyoBias1Z
	GyoBias2X
	GyoBias2Y
	GyoBias2Z
	GyoBias3X
	GyoBias3Y
	GyoBias3Z
	GyoScalX
	GyoScalY
	GyoScalZ
	GyoAlgnXY
	GyoAlgnXZ
	GyoAlgnYX
	GyoAlgnYZ
	GyoAlgnZX
	GyoAlgnZY
	MagBiasX
	MagBiasY
	MagBiasZ
	MagBias1X
	MagBias1Y
	MagBias1Z
	MagBias2X
	MagBias2Y
	MagBias2Z
	MagBias3X
	MagBias3Y
	MagBias3Z
	MagScalX
	MagScalY
	MagScalZ
	MagScal1X
	MagScal1Y
	MagScal1Z
	MagScal2X
	MagScal2Y
	MagScal2Z
	MagScal3X
	MagScal3Y
	MagScal3Z
	MagAlgnXY
	MagAlgnXZ
	MagAlgnYX
	MagAlgnYZ
	MagAlgnZX
	MagAlgnZY

	Count
)

var names = [Count]string{
	AccBiasX:  "IMU_ACC_BIAS_X",
	AccBiasY:  "IMU_ACC_BIAS_Y",
	AccBiasZ:  "IMU_ACC_BIAS_Z",
	AccBias1X: "IMU_ACC_BIAS1_X",
	AccBias1Y: "IMU_ACC_BIAS1_Y",
	AccBias1Z: "IMU_ACC_BIAS1_Z",
	AccBias2X: "IMU_ACC_BIAS2_X",
	AccBias2Y: "IMU_ACC_BIAS2_Y",
	AccBias2Z: "IMU_ACC_BIAS2_Z",
	AccBias3X: "IMU_ACC_BIAS3_X",
	AccBias3Y: "IMU_ACC_BIAS3_Y",
	AccBias3Z: "IMU_ACC_BIAS3_Z",
	AccScalX:  "IMU_ACC_SCAL_X",
	AccScalY:  "IMU_ACC_SCAL_Y",
	AccScalZ:  "IMU_ACC_SCAL_Z",
	AccScal1X: "IMU_ACC_SCAL1_X",
	AccScal1Y: "IMU_ACC_SCAL1_Y",
	AccScal1Z: "IMU_ACC_SCAL1_Z",
	AccScal2X: "IMU_ACC_SCAL2_X",
	AccScal2Y: "IMU_ACC_SCAL2_Y",
	AccScal2Z: "IMU_ACC_SCAL2_Z",
	AccScal3X: "IMU_ACC_SCAL3_X",
	AccScal3Y: "IMU_ACC_SCAL3_Y",
	AccScal3Z: "IMU_ACC_SCAL3_Z",
	AccAlgnXY: "IMU_ACC_ALGN_XY",
	AccAlgnXZ: "IMU_ACC_ALGN_XZ",
	AccAlgnYX: "IMU_ACC_ALGN_YX",
	AccAlgnYZ: "IMU_ACC_ALGN_YZ",
	AccAlgnZX: "IMU_ACC_ALGN_ZX",
	AccAlgnZY: "IMU_ACC_ALGN_ZY",
	GyoBiasX:  "IMU_GYO_BIAS_X",
	GyoBiasY:  "IMU_GYO_BIAS_Y",
	GyoBiasZ:  "IMU_GYO_BIAS_Z",
	GyoBias1X: "IMU_GYO_BIAS1_X",
	GyoBias1Y: "IMU_GYO_BIAS1_Y",
	GyoBias1Z: "IMU_GYO_BIAS1_Z",
	GyoBias2X: "IMU_GYO_BIAS2_X",
	GyoBias2Y: "IMU_GYO_BIAS2_Y",
	GyoBias2Z: "IMU_GYO_BIAS2_Z",
	GyoBias3X: "IMU_GYO_BIAS3_X",
	GyoBias3Y: "IMU_GYO_BIAS3_Y",
	GyoBias3Z: "IMU_GYO_BIAS3_Z",
	GyoScalX:  "IMU_GYO_SCAL_X",
	GyoScalY:  "IMU_GYO_SCAL_Y",
	GyoScalZ:  "IMU_GYO_SCAL_Z",
	GyoAlgnXY: "IMU_GYO_ALGN_XY",
	GyoAlgnXZ: "IMU_GYO_ALGN_XZ",
	GyoAlgnYX: "IMU_GYO_ALGN_YX",
	GyoAlgnYZ: "IMU_GYO_ALGN_YZ",
	GyoAlgnZX: "IMU_GYO_ALGN_ZX",
	GyoAlgnZY: "IMU_GYO_ALGN_ZY",
	MagBiasX:  "IMU_MAG_BIAS_X",
	MagBiasY:  "IMU_MAG_BIAS_Y",
	MagBiasZ:  "IMU_MAG_BIAS_Z",
	MagBias1X: "IMU_MAG_BIAS1_X",
	MagBias1Y: "IMU_MAG_BIAS1_Y",
	MagBias1Z: "IMU_MAG_BIAS1_Z",
	MagBias2X: "IMU_MAG_BIAS2_X",
	MagBias2Y: "IMU_MAG_BIAS2_Y",
	MagBias2Z: "IMU_MAG_BIAS2_Z",
	MagBias3X: "IMU_MAG_BIAS3_X",
	MagBias3Y: "IMU_MAG_BIAS3_Y",
	MagBias3Z: "IMU_MAG_BIAS3_Z",
	MagScalX:  "IMU_MAG_SCAL_X",
	MagScalY:  "IMU_MAG_SCAL_Y",
	MagScalZ:  "IMU_MAG_SCAL_Z",
	MagScal1X: "IMU_MAG_SCAL1_X",
	MagScal1Y: "IMU_MAG_SCAL1_Y",
	MagScal1Z: "IMU_MAG_SCAL1_Z",
	MagScal2X: "IMU_MAG_SCAL2_X",
	MagScal2Y: "IMU_MAG_SCAL2_Y",
	MagScal2Z: "IMU_MAG_SCAL2_Z",
	MagScal3X: "IMU_MAG_SCAL3_X",
	MagScal3Y: "IMU_MAG_SCAL3_Y",
	MagScal3Z: "IMU_MAG_SCAL3_Z",
	MagAlgnXY: "IMU_MAG_ALGN_XY",
	MagAlgnXZ: "IMU_MAG_ALGN_XZ",
	MagAlgnYX: "IMU_MAG_ALGN_YX",
	MagAlgnYZ: "IMU_MAG_ALGN_YZ",
	MagAlgnZX: "IMU_MAG_ALGN_ZX",
	MagAlgnZY: "IMU_MAG_ALGN_ZY",
}

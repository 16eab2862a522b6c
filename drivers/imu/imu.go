// Package imu adapts chip drivers from tinygo.org/x/drivers to the sensor
// capabilities used by the sampling loop, and provides a simulated IMU for
// hosts without hardware.
//
// Units at the capability boundary: m/s², rad/s, °C, Pa.
//
// Decode methods run on the sampling worker only. Enabled may be read from
// any goroutine.
package imu

import (
	"math"
	"sync/atomic"

	"dimu-go/types"
)

const (
	// StandardGravity converts g to m/s².
	StandardGravity = 9.80665

	microGToMS2     = StandardGravity / 1e6
	microDegToRadPS = math.Pi / 180 / 1e6
)

type base struct {
	name string
	typ  types.SensorType
	on   atomic.Bool
}

func (b *base) Name() string           { return b.name }
func (b *base) Type() types.SensorType { return b.typ }
func (b *base) Enable()                { b.on.Store(true) }
func (b *base) Disable()               { b.on.Store(false) }
func (b *base) Enabled() bool          { return b.on.Load() }

func scale3(x, y, z int32, k float64) [3]float32 {
	return [3]float32{float32(float64(x) * k), float32(float64(y) * k), float32(float64(z) * k)}
}

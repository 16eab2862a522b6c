// services/dimu/internal/params/params.go
package params

import (
	"math"
	"strings"
	"sync/atomic"
)

type Group uint8

const (
	GroupAcc Group = iota
	GroupGyo
	GroupMag
)

type Kind uint8

const (
	KindBias    Kind = iota // base bias
	KindBiasTC              // bias temperature coefficient (1st..3rd order)
	KindScale               // base scale
	KindScaleTC             // scale temperature coefficient
	KindAlign               // cross-axis alignment
)

func (id ID) Valid() bool { return id < Count }

func (id ID) Name() string {
	if !id.Valid() {
		return ""
	}
	return names[id]
}

func (id ID) String() string { return id.Name() }

// Group derives the sensor group from the slot's name.
func (id ID) Group() Group {
	switch {
	case strings.HasPrefix(names[id], "IMU_ACC_"):
		return GroupAcc
	case strings.HasPrefix(names[id], "IMU_GYO_"):
		return GroupGyo
	default:
		return GroupMag
	}
}

func (id ID) Kind() Kind {
	n := names[id][len("IMU_ACC_"):]
	switch {
	case strings.HasPrefix(n, "ALGN_"):
		return KindAlign
	case strings.HasPrefix(n, "BIAS_"):
		return KindBias
	case strings.HasPrefix(n, "BIAS"):
		return KindBiasTC
	case strings.HasPrefix(n, "SCAL_"):
		return KindScale
	default:
		return KindScaleTC
	}
}

// Neutral is the value a slot takes when calibration is reset.
func (id ID) Neutral() float32 {
	if id.Kind() == KindScale {
		return 1
	}
	return 0
}

var byName map[string]ID

func init() {
	byName = make(map[string]ID, Count)
	for i := ID(0); i < Count; i++ {
		byName[names[i]] = i
	}
}

// Lookup resolves a persisted parameter name.
func Lookup(name string) (ID, bool) {
	id, ok := byName[name]
	return id, ok
}

// Order returns every slot in persisted order.
func Order() []ID {
	out := make([]ID, Count)
	for i := range out {
		out[i] = ID(i)
	}
	return out
}

// -----------------------------------------------------------------------------
// Table
// -----------------------------------------------------------------------------

// Table holds the live calibration values. Each slot is read and written
// atomically; the table as a whole is not.
type Table struct {
	v [Count]atomic.Uint32
}

// NewTable returns a table with every slot at its neutral value.
func NewTable() *Table {
	t := &Table{}
	t.ResetNeutral(GroupAcc, GroupGyo, GroupMag)
	return t
}

func (t *Table) Get(id ID) float32 {
	return math.Float32frombits(t.v[id].Load())
}

func (t *Table) Set(id ID, v float32) {
	t.v[id].Store(math.Float32bits(v))
}

// Vec3 reads three consecutive slots starting at first.
func (t *Table) Vec3(first ID) [3]float32 {
	return [3]float32{t.Get(first), t.Get(first + 1), t.Get(first + 2)}
}

// ResetNeutral sets every slot of the given groups to its neutral value.
func (t *Table) ResetNeutral(groups ...Group) {
	for i := ID(0); i < Count; i++ {
		g := i.Group()
		for _, want := range groups {
			if g == want {
				t.Set(i, i.Neutral())
				break
			}
		}
	}
}

// Snapshot copies all values keyed by name.
func (t *Table) Snapshot() map[string]float32 {
	out := make(map[string]float32, Count)
	for i := ID(0); i < Count; i++ {
		out[names[i]] = t.Get(i)
	}
	return out
}

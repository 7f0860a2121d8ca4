package transform

import (
	"math"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

// DefaultScaleFactor converts engine units (meters) to host units (centimeters).
const DefaultScaleFactor = 100

// Policy selects how transforms cross the engine/host boundary.
type Policy struct {
	// ConvertCoordinates swaps Y and Z and flips rotation handedness. When false every
	// component is copied as-is.
	ConvertCoordinates bool `yaml:"convert_coordinates" json:"convert_coordinates"`

	// ScaleFactor multiplies positions going to the host and divides them going to the
	// engine. It never applies to scale. Only used with ConvertCoordinates.
	ScaleFactor float32 `yaml:"scale_factor" json:"scale_factor" validate:"gt=0"`
}

// DefaultPolicy converts coordinates with the default unit scale.
func DefaultPolicy() Policy {
	return Policy{ConvertCoordinates: true, ScaleFactor: DefaultScaleFactor}
}

// Host is a host-space transform. Rotation is a quaternion stored as (x, y, z, w).
type Host struct {
	Translation [3]float32 `json:"translation"`
	Rotation    [4]float32 `json:"rotation"`
	Scale       [3]float32 `json:"scale"`
}

// HostIdentity returns the identity host transform.
func HostIdentity() Host {
	return Host{Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}}
}

// Codec converts transforms between engine and host space.
type Codec struct {
	policy Policy
}

// NewCodec returns a codec for the policy. A non-positive scale factor uses the default.
func NewCodec(p Policy) *Codec {
	if p.ScaleFactor <= 0 {
		p.ScaleFactor = DefaultScaleFactor
	}
	return &Codec{policy: p}
}

// Policy returns the codec's policy.
func (c *Codec) Policy() Policy { return c.policy }

// swapQuat swaps Y and Z and negates W, flipping handedness. It is its own inverse.
func swapQuat(q [4]float32) [4]float32 {
	return [4]float32{q[0], q[2], q[1], -q[3]}
}

func swapYZ(v [3]float32) [3]float32 {
	return [3]float32{v[0], v[2], v[1]}
}

func scaled(v [3]float32, f float32) [3]float32 {
	return [3]float32{v[0] * f, v[1] * f, v[2] * f}
}

// ToHost converts an engine quaternion transform to host space.
func (c *Codec) ToHost(t engine.Transform) Host {
	if !c.policy.ConvertCoordinates {
		return Host{Translation: t.Position, Rotation: t.RotationQuaternion, Scale: t.Scale}
	}
	return Host{
		Translation: scaled(swapYZ(t.Position), c.policy.ScaleFactor),
		Rotation:    swapQuat(t.RotationQuaternion),
		Scale:       swapYZ(t.Scale),
	}
}

// ToEngine converts a host transform to an engine quaternion transform in SRT order.
func (c *Codec) ToEngine(h Host) engine.Transform {
	out := engine.Transform{RSTOrder: engine.RSTOrderSRT}
	if !c.policy.ConvertCoordinates {
		out.Position = h.Translation
		out.RotationQuaternion = h.Rotation
		out.Scale = h.Scale
		return out
	}
	out.Position = swapYZ(scaled(h.Translation, 1/c.policy.ScaleFactor))
	out.RotationQuaternion = swapQuat(h.Rotation)
	out.Scale = swapYZ(h.Scale)
	return out
}

// ToHostEuler converts an engine Euler transform to host space. The rotation goes
// through the quaternion form, honoring the transform's axis order.
func (c *Codec) ToHostEuler(t engine.TransformEuler) Host {
	q := EulerToQuat(t.RotationEuler, t.RotationOrder)
	return c.ToHost(engine.Transform{
		Position:           t.Position,
		RotationQuaternion: q,
		Scale:              t.Scale,
		Shear:              t.Shear,
		RSTOrder:           t.RSTOrder,
	})
}

// ToEngineEuler converts a host transform to an engine Euler transform. The rotation
// order is always XYZ and the application order always SRT.
func (c *Codec) ToEngineEuler(h Host) engine.TransformEuler {
	q := c.ToEngine(h)
	return engine.TransformEuler{
		Position:      q.Position,
		RotationEuler: QuatToEuler(q.RotationQuaternion),
		Scale:         q.Scale,
		RotationOrder: engine.XYZOrderXYZ,
		RSTOrder:      engine.RSTOrderSRT,
	}
}

const degToRad = math.Pi / 180

type quat [4]float64

func (a quat) mul(b quat) quat {
	return quat{
		a[3]*b[0] + a[0]*b[3] + a[1]*b[2] - a[2]*b[1],
		a[3]*b[1] - a[0]*b[2] + a[1]*b[3] + a[2]*b[0],
		a[3]*b[2] + a[0]*b[1] - a[1]*b[0] + a[2]*b[3],
		a[3]*b[3] - a[0]*b[0] - a[1]*b[1] - a[2]*b[2],
	}
}

func axisQuat(axis int, deg float32) quat {
	half := float64(deg) * degToRad / 2
	var q quat
	q[axis] = math.Sin(half)
	q[3] = math.Cos(half)
	return q
}

// EulerToQuat converts Euler angles in degrees to a quaternion (x, y, z, w). The order
// names the axes in application order, so XYZ rotates about X first.
func EulerToQuat(deg [3]float32, order engine.XYZOrder) [4]float32 {
	var axes [3]int
	switch order {
	case engine.XYZOrderXZY:
		axes = [3]int{0, 2, 1}
	case engine.XYZOrderYXZ:
		axes = [3]int{1, 0, 2}
	case engine.XYZOrderYZX:
		axes = [3]int{1, 2, 0}
	case engine.XYZOrderZXY:
		axes = [3]int{2, 0, 1}
	case engine.XYZOrderZYX:
		axes = [3]int{2, 1, 0}
	default:
		axes = [3]int{0, 1, 2}
	}
	q := quat{0, 0, 0, 1}
	for _, a := range axes {
		// Later rotations multiply on the left.
		q = axisQuat(a, deg[a]).mul(q)
	}
	return [4]float32{float32(q[0]), float32(q[1]), float32(q[2]), float32(q[3])}
}

// QuatToEuler converts a quaternion (x, y, z, w) to XYZ-order Euler angles in degrees.
func QuatToEuler(q [4]float32) [3]float32 {
	x, y, z, w := float64(q[0]), float64(q[1]), float64(q[2]), float64(q[3])
	n := math.Sqrt(x*x + y*y + z*z + w*w)
	if n == 0 {
		return [3]float32{}
	}
	x, y, z, w = x/n, y/n, z/n, w/n

	r00 := 1 - 2*(y*y+z*z)
	r10 := 2 * (x*y + w*z)
	r20 := 2 * (x*z - w*y)
	r21 := 2 * (y*z + w*x)
	r22 := 1 - 2*(x*x+y*y)

	sy := -r20
	if sy > 1 {
		sy = 1
	} else if sy < -1 {
		sy = -1
	}
	ry := math.Asin(sy)

	var rx, rz float64
	if math.Abs(sy) > 1-1e-9 {
		// Gimbal lock: fold the X rotation into Z.
		r01 := 2 * (x*y - w*z)
		r11 := 1 - 2*(x*x+z*z)
		rx = 0
		rz = math.Atan2(-r01, r11)
	} else {
		rx = math.Atan2(r21, r22)
		rz = math.Atan2(r10, r00)
	}
	return [3]float32{float32(rx / degToRad), float32(ry / degToRad), float32(rz / degToRad)}
}

// FindBetween returns the shortest rotation (x, y, z, w) taking direction a onto
// direction b. Zero vectors give the identity.
func FindBetween(a, b [3]float32) [4]float32 {
	u, okA := unit(a)
	v, okB := unit(b)
	if !okA || !okB {
		return [4]float32{0, 0, 0, 1}
	}
	w := 1 + u[0]*v[0] + u[1]*v[1] + u[2]*v[2]
	var q quat
	if w < 1e-6 {
		// Opposite directions: half turn about any axis perpendicular to a.
		if math.Abs(u[0]) > math.Abs(u[2]) {
			q = quat{-u[1], u[0], 0, 0}
		} else {
			q = quat{0, -u[2], u[1], 0}
		}
	} else {
		q = quat{
			u[1]*v[2] - u[2]*v[1],
			u[2]*v[0] - u[0]*v[2],
			u[0]*v[1] - u[1]*v[0],
			w,
		}
	}
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	return [4]float32{float32(q[0] / n), float32(q[1] / n), float32(q[2] / n), float32(q[3] / n)}
}

func unit(v [3]float32) ([3]float64, bool) {
	x, y, z := float64(v[0]), float64(v[1]), float64(v[2])
	n := math.Sqrt(x*x + y*y + z*z)
	if n == 0 {
		return [3]float64{}, false
	}
	return [3]float64{x / n, y / n, z / n}, true
}

package calib

import (
	"fmt"
	"math"
)

// Projection identifies the geometric camera model.
type Projection string

const (
	ProjectionFisheye Projection = "fisheye"
	ProjectionPinhole Projection = "pinhole"
)

// LensModel holds the intrinsic parameters of one camera.
//
// For fisheye models Coeffs are the polynomial theta-distortion terms
// k1..k4: theta_d = theta * (1 + k1*theta^2 + k2*theta^4 + k3*theta^6 +
// k4*theta^8). For pinhole models Coeffs are radial terms k1, k2; an empty
// slice means an ideal lens.
type LensModel struct {
	Projection Projection `json:"projection"`
	FX         float64    `json:"fx"`
	FY         float64    `json:"fy"`
	CX         float64    `json:"cx"`
	CY         float64    `json:"cy"`
	Coeffs     []float64  `json:"coeffs,omitempty"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	// MaxAngle bounds the valid incidence angle (radians) of the fisheye
	// distortion domain. Zero means no explicit bound.
	MaxAngle float64 `json:"max_angle,omitempty"`
}

// Validate rejects models that cannot project anything.
func (m LensModel) Validate() error {
	switch m.Projection {
	case ProjectionFisheye, ProjectionPinhole:
	default:
		return fmt.Errorf("unknown projection %q", m.Projection)
	}
	if m.FX <= 0 || m.FY <= 0 {
		return fmt.Errorf("focal lengths must be positive, got fx=%g fy=%g", m.FX, m.FY)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", m.Width, m.Height)
	}
	return nil
}

// Project maps a camera-space ray (x, y, z) to pixel coordinates under this
// model's forward distortion. ok reports whether the ray falls inside the
// model's valid projection domain; callers must treat !ok as out of bounds,
// not as an error.
func (m LensModel) Project(x, y, z float64) (u, v float64, ok bool) {
	switch m.Projection {
	case ProjectionPinhole:
		return m.projectPinhole(x, y, z)
	case ProjectionFisheye:
		return m.projectFisheye(x, y, z)
	default:
		return 0, 0, false
	}
}

func (m LensModel) projectPinhole(x, y, z float64) (float64, float64, bool) {
	if z <= 0 {
		return 0, 0, false
	}
	a := x / z
	b := y / z
	radial := 1.0
	if len(m.Coeffs) > 0 {
		r2 := a*a + b*b
		radial += m.Coeffs[0] * r2
		if len(m.Coeffs) > 1 {
			radial += m.Coeffs[1] * r2 * r2
		}
	}
	return m.FX*a*radial + m.CX, m.FY*b*radial + m.CY, true
}

func (m LensModel) projectFisheye(x, y, z float64) (float64, float64, bool) {
	r := math.Hypot(x, y)
	theta := math.Atan2(r, z)
	if theta < 0 {
		return 0, 0, false
	}
	if m.MaxAngle > 0 && theta > m.MaxAngle {
		return 0, 0, false
	}
	if r == 0 {
		// On-axis ray lands on the principal point.
		return m.CX, m.CY, true
	}
	thetaD := theta
	if len(m.Coeffs) > 0 {
		t2 := theta * theta
		term := t2
		for _, k := range m.Coeffs {
			thetaD += k * term * theta
			term *= t2
		}
	}
	return m.FX*thetaD*(x/r) + m.CX, m.FY*thetaD*(y/r) + m.CY, true
}

// BackProject maps pixel coordinates to a normalized camera-space ray with
// z = 1. Only meaningful for pinhole models; the mapper uses it to walk the
// target image.
func (m LensModel) BackProject(u, v float64) (x, y, z float64) {
	return (u - m.CX) / m.FX, (v - m.CY) / m.FY, 1
}

// PinholeSpec describes a requested target projection.
type PinholeSpec struct {
	Width      int
	Height     int
	FOVDegrees float64
}

// NewPinhole synthesizes the target pinhole model for a spec: the focal
// length follows f = (w/2) / tan(fov/2) and the principal point is centered.
func NewPinhole(spec PinholeSpec) LensModel {
	fovRad := spec.FOVDegrees * math.Pi / 180
	f := float64(spec.Width) / 2 / math.Tan(fovRad/2)
	return LensModel{
		Projection: ProjectionPinhole,
		FX:         f,
		FY:         f,
		CX:         float64(spec.Width-1) / 2,
		CY:         float64(spec.Height-1) / 2,
		Width:      spec.Width,
		Height:     spec.Height,
	}
}

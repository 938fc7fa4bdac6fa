package core

import "math"

// SampleCosineHemisphere generates a cosine-weighted direction in the local
// y-up hemisphere. The solid-angle density of the result is omega.Y / pi.
func SampleCosineHemisphere(sample Vec2) Vec3 {
	a := 2.0 * math.Pi * sample.X
	r := math.Sqrt(sample.Y)

	x := r * math.Cos(a)
	z := r * math.Sin(a)
	y := math.Sqrt(math.Max(0, 1.0-sample.Y))

	return NewVec3(x, y, z)
}

// CosineHemisphereDensity returns the solid-angle density of a
// cosine-weighted hemisphere sample for a local direction
func CosineHemisphereDensity(omega Vec3) float64 {
	if omega.Y <= 0 {
		return 0
	}
	return omega.Y / math.Pi
}

// SampleUniformSphere generates a uniform direction on the unit sphere
func SampleUniformSphere(sample Vec2) Vec3 {
	y := 1.0 - 2.0*sample.X
	r := math.Sqrt(math.Max(0, 1.0-y*y))
	phi := 2.0 * math.Pi * sample.Y
	return NewVec3(r*math.Cos(phi), y, r*math.Sin(phi))
}

// SampleUniformTriangle returns barycentric coordinates (u, v) distributed
// uniformly over a triangle
func SampleUniformTriangle(sample Vec2) Vec2 {
	su := math.Sqrt(sample.X)
	return NewVec2(1.0-su, sample.Y*su)
}

// SamplePowerCosineHemisphere generates a direction distributed as
// cos^power around the local y axis. Density is (power+1)/(2 pi) * cos^power.
func SamplePowerCosineHemisphere(sample Vec2, power float64) Vec3 {
	cosTheta := math.Pow(sample.X, 1.0/(power+1.0))
	sinTheta := math.Sqrt(math.Max(0, 1.0-cosTheta*cosTheta))
	phi := 2.0 * math.Pi * sample.Y
	return NewVec3(sinTheta*math.Cos(phi), cosTheta, sinTheta*math.Sin(phi))
}

// AngularBound is a theta/phi box in local y-up coordinates, used to
// restrict hemisphere sampling to the directions that can reach a target.
type AngularBound struct {
	ThetaInf, ThetaSup float64
	PhiInf, PhiSup     float64
}

// FullHemisphereBound covers the whole upper hemisphere
func FullHemisphereBound() AngularBound {
	return AngularBound{ThetaInf: 0, ThetaSup: math.Pi / 2, PhiInf: 0, PhiSup: 2 * math.Pi}
}

// SphereAngularBound computes a theta/phi box containing every local
// direction whose ray can intersect the sphere at localCenter with the
// given radius. Falls back to the full hemisphere when the query point is
// inside the sphere; when the cone contains the pole, phi is unrestricted
// but theta stays bounded.
func SphereAngularBound(localCenter Vec3, radius float64) AngularBound {
	dist := localCenter.Length()
	if dist <= radius {
		return FullHemisphereBound()
	}

	alpha := math.Asin(math.Min(1.0, radius/dist))
	thetaCenter := math.Acos(math.Max(-1.0, math.Min(1.0, localCenter.Y/dist)))

	bound := AngularBound{
		ThetaInf: math.Max(0, thetaCenter-alpha),
		ThetaSup: math.Min(math.Pi/2, thetaCenter+alpha),
	}

	sinTheta := math.Sqrt(math.Max(0, 1.0-(localCenter.Y/dist)*(localCenter.Y/dist)))
	if sinTheta*dist <= radius {
		// cone contains the pole, no phi restriction
		bound.PhiInf = 0
		bound.PhiSup = 2 * math.Pi
		return bound
	}

	phiCenter := math.Atan2(localCenter.Z, localCenter.X)
	deltaPhi := math.Asin(math.Min(1.0, radius/(dist*sinTheta)))
	bound.PhiInf = phiCenter - deltaPhi
	bound.PhiSup = phiCenter + deltaPhi
	return bound
}

// SampleBoundedCosineHemisphere draws a cosine-weighted local direction
// restricted to the angular bound. The returned subarea is the fraction of
// the full cosine-weighted measure covered by the bound, so that
// density(omega) = CosineHemisphereDensity(omega) / subarea.
func SampleBoundedCosineHemisphere(sample Vec2, bound AngularBound) (Vec3, float64) {
	cos2Sup := math.Cos(bound.ThetaInf) * math.Cos(bound.ThetaInf)
	cos2Inf := math.Cos(bound.ThetaSup) * math.Cos(bound.ThetaSup)

	subarea := (bound.PhiSup - bound.PhiInf) / (2 * math.Pi) * (cos2Sup - cos2Inf)
	if subarea <= 0 {
		return NewVec3(0, 1, 0), 0
	}

	cos2 := cos2Inf + sample.X*(cos2Sup-cos2Inf)
	cosTheta := math.Sqrt(cos2)
	sinTheta := math.Sqrt(math.Max(0, 1.0-cos2))
	phi := bound.PhiInf + sample.Y*(bound.PhiSup-bound.PhiInf)

	omega := NewVec3(sinTheta*math.Cos(phi), cosTheta, sinTheta*math.Sin(phi))
	return omega, subarea
}

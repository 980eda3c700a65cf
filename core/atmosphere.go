package core

import "math"

// Location describes the body currently governing the craft.
type Location struct {
	Body            BodyView
	Offset          Vec3 // body centre minus craft position
	Distance        float64
	Altitude        float64 // negative below the surface
	AtmosphereDepth float64 // 0 at the atmosphere edge, 1 at the surface
	InAtmosphere    bool
}

// AtmosphereDepth returns how far into an atmosphere shell a point at
// distance lies, clamped to [0, 1]. A shell of zero thickness reads 1 at or
// below the surface and 0 above it.
func AtmosphereDepth(distance, radius, atmosphereRadius float64) float64 {
	thickness := atmosphereRadius - radius
	if thickness <= 0 {
		if distance <= radius {
			return 1
		}
		return 0
	}
	return clamp((atmosphereRadius-distance)/thickness, 0, 1)
}

// Locate picks the body whose atmosphere the craft is most deeply inside.
// When no atmosphere contains the craft it falls back to the nearest centre
// with depth 0. It reports false for an empty body set.
func Locate(craft Vec3, bodies []BodyView) (Location, bool) {
	if len(bodies) == 0 {
		return Location{}, false
	}

	best := -1
	bestDepth := -1.0
	nearest := -1
	nearestDist := math.Inf(1)

	for i := range bodies {
		b := &bodies[i]
		dist := b.Position.DistanceTo(craft)
		if dist < nearestDist {
			nearestDist = dist
			nearest = i
		}
		if dist >= b.AtmosphereRadius {
			continue
		}
		if t := AtmosphereDepth(dist, b.Radius, b.AtmosphereRadius); t > bestDepth {
			bestDepth = t
			best = i
		}
	}

	if best >= 0 {
		return newLocation(craft, bodies[best], bestDepth, true), true
	}
	if nearest < 0 {
		// Every distance was NaN.
		return Location{}, false
	}
	return newLocation(craft, bodies[nearest], 0, false), true
}

func newLocation(craft Vec3, b BodyView, depth float64, inAtmo bool) Location {
	offset := b.Position.Sub(craft)
	dist := offset.Norm()
	return Location{
		Body:            b,
		Offset:          offset,
		Distance:        dist,
		Altitude:        dist - b.Radius,
		AtmosphereDepth: depth,
		InAtmosphere:    inAtmo,
	}
}

package core

// CushionDamping is the per-contact velocity factor while scraping a surface.
const CushionDamping = 0.998

// ApplyReferenceFrame nudges the craft toward the frame of the body it is
// inside. The coupling grows with depth² so the edge of the atmosphere barely
// feels it and there is no snap on entry or exit.
func ApplyReferenceFrame(craftVelocity, parentVelocity Vec3, atmosphereDepth, dt, strength float64) Vec3 {
	if atmosphereDepth <= 0 {
		return craftVelocity
	}
	blend := atmosphereDepth * atmosphereDepth * strength * dt * 2
	return craftVelocity.Add(parentVelocity.Scale(blend))
}

// ApplyDrag slows the craft in proportion to atmosphere depth.
func ApplyDrag(velocity Vec3, atmosphereDepth, dragStrength, dt float64) Vec3 {
	if atmosphereDepth <= 0 || dragStrength <= 0 {
		return velocity
	}
	damp := 1 - dragStrength*atmosphereDepth*dt
	if damp < 0 {
		damp = 0
	}
	return velocity.Scale(damp)
}

// CushionResult is the craft state after the altitude floor was enforced.
type CushionResult struct {
	Position  Vec3
	Velocity  Vec3
	Contacted bool
}

// ApplyCushion keeps the craft at least minAltitude above the surface of the
// sphere (center, radius). Below the floor the craft is moved radially out to
// exactly radius + minAltitude, any inward radial velocity is cancelled, and
// the remaining velocity is damped slightly. A craft sitting exactly on the
// centre is pushed out along +Y.
func ApplyCushion(position, velocity, center Vec3, radius, minAltitude float64) CushionResult {
	d := position.Sub(center)
	dist := d.Norm()
	if dist-radius >= minAltitude {
		return CushionResult{Position: position, Velocity: velocity}
	}

	dirOut := AxisUp
	if dist > unitEpsilon {
		dirOut = d.Scale(1 / dist)
	}
	pos := center.Add(dirOut.Scale(radius + minAltitude))

	vel := velocity
	if vRad := vel.Dot(dirOut); vRad < 0 {
		vel = vel.Sub(dirOut.Scale(vRad))
	}
	vel = vel.Scale(CushionDamping)

	return CushionResult{Position: pos, Velocity: vel, Contacted: true}
}

package core

// DefaultSofteningRadius stands in for a body radius when none is configured.
// With the shipped configuration only tests reach it.
const DefaultSofteningRadius = 500.0

// softeningFraction of the body radius sets the softening length.
const softeningFraction = 0.25

// PointMass is a gravity source at the current tick's position.
type PointMass struct {
	Name     string
	Position Vec3
	Radius   float64
	GM       float64
}

// Softening returns the squared softening length added to d².
func (m PointMass) Softening() float64 {
	r := m.Radius
	if !(r > 0) {
		r = DefaultSofteningRadius
	}
	s := r * softeningFraction
	return s * s
}

// BodyAcceleration is the softened gravitational pull of m at query:
// GM / (d² + s) toward the body's centre. At the centre itself the direction
// is undefined and the contribution is zero.
func BodyAcceleration(query Vec3, m PointMass) Vec3 {
	d := m.Position.Sub(query)
	r2 := d.Dot(d)
	g := m.GM / (r2 + m.Softening())
	return d.Unit().Scale(g)
}

// TotalAcceleration sums the pull of every body plus the star. A nil star or
// one with zero GM contributes nothing.
func TotalAcceleration(query Vec3, bodies []PointMass, star *PointMass) Vec3 {
	var total Vec3
	for _, b := range bodies {
		total = total.Add(BodyAcceleration(query, b))
	}
	if star != nil && star.GM != 0 {
		total = total.Add(BodyAcceleration(query, *star))
	}
	return total
}

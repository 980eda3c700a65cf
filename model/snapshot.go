package model

// BodyState is a read-only view of one body at the end of a tick.
type BodyState struct {
	Name             string  `json:"name"`
	Parent           string  `json:"parent,omitempty"`
	Position         Motion  `json:"position"`
	Velocity         Motion  `json:"velocity"`
	Radius           float64 `json:"radius"`
	AtmosphereRadius float64 `json:"atmosphereRadius"`
}

// Orientation is a unit quaternion.
type Orientation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// CraftState is the player craft as handed to renderers.
type CraftState struct {
	Position    Motion      `json:"position"`
	Velocity    Motion      `json:"velocity"`
	Orientation Orientation `json:"orientation"`
	Throttle    float64     `json:"throttle"`
	Speed       float64     `json:"speed"`
}

// NearestBody reports the body currently governing the craft.
type NearestBody struct {
	Name            string  `json:"name"`
	Distance        float64 `json:"distance"`
	Altitude        float64 `json:"altitude"`
	AtmosphereDepth float64 `json:"atmosphereDepth"`
	InAtmosphere    bool    `json:"inAtmosphere"`
	Cushioned       bool    `json:"cushioned"`
}

// FrameSnapshot is everything a presentation layer needs for one tick.
type FrameSnapshot struct {
	Tick    uint64       `json:"tick"`
	SimTime float64      `json:"simTime"`
	Dt      float64      `json:"dt"`
	Star    BodyState    `json:"star"`
	Bodies  []BodyState  `json:"bodies"`
	Craft   CraftState   `json:"craft"`
	Nearest *NearestBody `json:"nearest,omitempty"`
	Gravity Motion       `json:"gravity"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s FrameSnapshot) Clone() FrameSnapshot {
	out := s
	out.Bodies = append([]BodyState(nil), s.Bodies...)
	if s.Nearest != nil {
		n := *s.Nearest
		out.Nearest = &n
	}
	return out
}

package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/orbital-flight-sim/model"
)

var (
	ErrBodyExists     = errors.New("body already exists")
	ErrUnknownParent  = errors.New("body references unknown parent")
	ErrHierarchyCycle = errors.New("body hierarchy contains a cycle")
	ErrNoStar         = errors.New("central star not configured")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventBodyAdded EventType = iota
	EventSnapshotPublished
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type     EventType
	Body     string
	Snapshot *model.FrameSnapshot
}

// KnowledgeBase is an in-memory, thread-safe catalog of the star and the
// bodies moving around it, plus the most recently published frame.
type KnowledgeBase struct {
	mu sync.RWMutex

	star   *model.StarDefinition
	bodies map[string]*model.BodyDefinition
	order  []string

	latest *model.FrameSnapshot

	subs   map[int]func(Event)
	nextID int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		bodies: make(map[string]*model.BodyDefinition),
		subs:   make(map[int]func(Event)),
	}
}

// SetStar records the central star. Its name shares the body namespace.
func (kb *KnowledgeBase) SetStar(s model.StarDefinition) error {
	if s.Name == "" {
		return fmt.Errorf("%w: star has empty name", model.ErrInvalidBody)
	}
	if s.GM < 0 || s.Radius < 0 {
		return fmt.Errorf("%w: star %q has negative GM or radius", model.ErrInvalidBody, s.Name)
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.bodies[s.Name]; exists {
		return fmt.Errorf("%w: %q", ErrBodyExists, s.Name)
	}
	kb.star = &s
	return nil
}

// Star returns the configured star.
func (kb *KnowledgeBase) Star() (model.StarDefinition, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if kb.star == nil {
		return model.StarDefinition{}, false
	}
	return *kb.star, true
}

// AddBody validates and adds a body. Names must be unique across bodies and
// the star. Parent references are checked by Resolve, so bodies may be added
// in any order.
func (kb *KnowledgeBase) AddBody(b *model.BodyDefinition) error {
	if err := b.Validate(); err != nil {
		return err
	}

	kb.mu.Lock()
	if _, exists := kb.bodies[b.Name]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyExists, b.Name)
	}
	if kb.star != nil && kb.star.Name == b.Name {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q is the star", ErrBodyExists, b.Name)
	}
	kb.bodies[b.Name] = b
	kb.order = append(kb.order, b.Name)
	subs := kb.subscribers()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventBodyAdded, Body: b.Name})
	return nil
}

// GetBody returns the body with the given name, or nil if not found.
func (kb *KnowledgeBase) GetBody(name string) *model.BodyDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.bodies[name]
}

// ListBodies returns the bodies in insertion order.
func (kb *KnowledgeBase) ListBodies() []*model.BodyDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.BodyDefinition, 0, len(kb.order))
	for _, name := range kb.order {
		res = append(res, kb.bodies[name])
	}
	return res
}

// ResolvedBody is a body with its parent reference turned into an index.
type ResolvedBody struct {
	Definition *model.BodyDefinition
	Parent     int // index into Hierarchy.Bodies, -1 for the star
	Depth      int // 1 for bodies orbiting the star
}

// Hierarchy is the parent forest resolved once at startup.
type Hierarchy struct {
	Star   model.StarDefinition
	Bodies []ResolvedBody // insertion order
	Index  map[string]int

	// Phases groups body indices by depth. Every body in Phases[k] has its
	// parent in Phases[k-1] (or the star when k == 0).
	Phases [][]int
}

// Resolve turns the name references into indices and orders the bodies into
// depth phases. Unknown parents and cycles are configuration errors.
func (kb *KnowledgeBase) Resolve() (*Hierarchy, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if kb.star == nil {
		return nil, ErrNoStar
	}

	h := &Hierarchy{
		Star:   *kb.star,
		Bodies: make([]ResolvedBody, len(kb.order)),
		Index:  make(map[string]int, len(kb.order)),
	}
	for i, name := range kb.order {
		h.Index[name] = i
	}
	for i, name := range kb.order {
		def := kb.bodies[name]
		parent := -1
		if pn := def.ParentName(); pn != "" && pn != kb.star.Name {
			idx, ok := h.Index[pn]
			if !ok {
				return nil, fmt.Errorf("%w: %q orbits %q", ErrUnknownParent, name, pn)
			}
			parent = idx
		}
		h.Bodies[i] = ResolvedBody{Definition: def, Parent: parent}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(h.Bodies))
	var depthOf func(i int) (int, error)
	depthOf = func(i int) (int, error) {
		switch state[i] {
		case done:
			return h.Bodies[i].Depth, nil
		case visiting:
			return 0, fmt.Errorf("%w: at %q", ErrHierarchyCycle, h.Bodies[i].Definition.Name)
		}
		state[i] = visiting
		depth := 1
		if p := h.Bodies[i].Parent; p >= 0 {
			pd, err := depthOf(p)
			if err != nil {
				return 0, err
			}
			depth = pd + 1
		}
		state[i] = done
		h.Bodies[i].Depth = depth
		return depth, nil
	}

	for i := range h.Bodies {
		d, err := depthOf(i)
		if err != nil {
			return nil, err
		}
		for len(h.Phases) < d {
			h.Phases = append(h.Phases, nil)
		}
		h.Phases[d-1] = append(h.Phases[d-1], i)
	}
	return h, nil
}

// PublishSnapshot stores a copy of the frame as the latest one and notifies
// subscribers.
func (kb *KnowledgeBase) PublishSnapshot(s model.FrameSnapshot) {
	snap := s.Clone()

	kb.mu.Lock()
	kb.latest = &snap
	subs := kb.subscribers()
	kb.mu.Unlock()

	if len(subs) == 0 {
		return
	}
	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, Event{Type: EventSnapshotPublished, Snapshot: &snap})
}

// LatestSnapshot returns a copy of the most recently published frame.
func (kb *KnowledgeBase) LatestSnapshot() (model.FrameSnapshot, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if kb.latest == nil {
		return model.FrameSnapshot{}, false
	}
	return kb.latest.Clone(), true
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextID
	kb.nextID++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// subscribers copies the callbacks; callers must hold kb.mu.
func (kb *KnowledgeBase) subscribers() []func(Event) {
	out := make([]func(Event), 0, len(kb.subs))
	for _, fn := range kb.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}

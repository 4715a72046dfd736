package ecs

// System represents a behavior that operates on entities with specific components.
// User-defined systems should implement this interface and can include Query fields
// for accessing entities, as well as custom state fields that persist between frames.
type System interface {
	Execute(frame *UpdateFrame)
}

// Phase orders systems within a frame. Systems in a lower phase run first;
// systems sharing a phase run in registration order.
type Phase int

const (
	PhaseInput Phase = iota
	PhasePreUpdate
	PhaseUpdate
	PhasePostUpdate
	PhaseRender
)

var phaseNames = [...]string{"input", "pre-update", "update", "post-update", "render"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Phased is implemented by systems that do not run in PhaseUpdate.
type Phased interface {
	Phase() Phase
}

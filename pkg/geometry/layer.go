package geometry

// Role distinguishes the two anatomical shapes of a layer.
type Role int

const (
	RoleDisc Role = iota
	RoleCup
)

// Roles lists the roles in evaluation order.
var Roles = [...]Role{RoleDisc, RoleCup}

func (r Role) String() string {
	switch r {
	case RoleDisc:
		return "disc"
	case RoleCup:
		return "cup"
	default:
		return "unknown"
	}
}

// LayerKind tells whether a layer's geometry comes from manual shapes or from
// a segmentation mask.
type LayerKind int

const (
	LayerManual LayerKind = iota
	LayerAutomatic
)

func (k LayerKind) String() string {
	if k == LayerAutomatic {
		return "Automatic"
	}
	return "Manual"
}

// Layer pairs a disc shape with a cup shape. Either may be nil.
type Layer struct {
	Name   string
	Kind   LayerKind
	Shapes [2]Shape
}

// NewLayer creates an empty layer.
func NewLayer(name string, kind LayerKind) *Layer {
	return &Layer{Name: name, Kind: kind}
}

// Shape returns the shape for a role, or nil.
func (l *Layer) Shape(role Role) Shape {
	return l.Shapes[role]
}

// SetShape replaces the shape for a role.
func (l *Layer) SetShape(role Role, s Shape) {
	l.Shapes[role] = s
}

// Complete reports whether both roles are defined.
func (l *Layer) Complete() bool {
	if l.Kind == LayerAutomatic {
		return true
	}
	return l.Shapes[RoleDisc] != nil && l.Shapes[RoleCup] != nil
}

// Handle identifies a draggable point of a layer shape.
type Handle struct {
	Role  Role
	Index int // position in Shape.Handles()
}

// Point resolves the handle against a layer. It returns nil if the shape is
// missing or the index is out of range.
func (h Handle) Point(l *Layer) *Point {
	s := l.Shape(h.Role)
	if s == nil {
		return nil
	}
	handles := s.Handles()
	if h.Index < 0 || h.Index >= len(handles) {
		return nil
	}
	return handles[h.Index]
}

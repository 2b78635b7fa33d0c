package models

// ViewerKind distinguishes the admin pseudo-identity from ordinary customers.
type ViewerKind string

const (
	KindAdmin    ViewerKind = "admin"
	KindCustomer ViewerKind = "customer"
)

// Viewer is a resolved caller identity. The core never checks credentials itself.
type Viewer struct {
	Kind ViewerKind `json:"kind"`
	ID   string     `json:"id"`
	Name string     `json:"name"`
}

// IsAdmin reports whether the viewer is the privileged admin identity.
func (v Viewer) IsAdmin() bool { return v.Kind == KindAdmin }

// Package auth holds the client-side credential machinery: the cookie-backed
// token store, unverified JWT claims decoding, and the session guard that
// derives the acting identity from the stored credential.
package auth

// Namespace is the acting role context a user operates under. A user may
// hold several investor and startup cabinets; exactly one is active per
// credential.
type Namespace string

const (
	NamespaceInvestor Namespace = "investor"
	NamespaceStartup  Namespace = "startup"
)

// Valid reports whether the namespace kind is one the forum knows about.
func (n Namespace) Valid() bool {
	return n == NamespaceInvestor || n == NamespaceStartup
}

// Identity is the acting principal for authored content: who the user is and
// which cabinet they are acting as. It is the author shape the messaging
// endpoints expect.
type Identity struct {
	UserID      int64     `json:"user_id"`
	Namespace   Namespace `json:"namespace"`
	NamespaceID int64     `json:"namespace_id"`
}

package auth

import (
	"time"
)

// Guard decides whether the stored credential is usable and derives the
// caller's active identity from it. Any decode anomaly counts as expired:
// the guard fails closed, never treating an unparsable token as valid.
//
// The guard only checks that the namespace kind is one the forum defines.
// Stricter authorship policies (for example investor-only composing) belong
// to the calling feature, not here.
type Guard struct {
	store *Store
	now   func() time.Time
}

// NewGuard returns a Guard over the given store using wall-clock time.
func NewGuard(store *Store) *Guard {
	return &Guard{store: store, now: time.Now}
}

// IsExpired reports whether the token is unusable: undecodable, or its exp
// claim is at or before the current time (second resolution).
func (g *Guard) IsExpired(token string) bool {
	claims, err := DecodeClaims(token)
	if err != nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(g.now().Truncate(time.Second))
}

// IsAuthenticated reports whether the store holds a live credential.
func (g *Guard) IsAuthenticated() bool {
	token, ok := g.store.Token()
	return ok && !g.IsExpired(token)
}

// CurrentIdentity derives the acting principal from the stored credential.
// Absent unless the caller is authenticated and the token carries a user id
// plus a valid namespace selection.
func (g *Guard) CurrentIdentity() (Identity, bool) {
	token, ok := g.store.Token()
	if !ok || g.IsExpired(token) {
		return Identity{}, false
	}

	claims, err := DecodeClaims(token)
	if err != nil {
		return Identity{}, false
	}

	ns := Namespace(claims.Namespace)
	if claims.UserID == 0 || claims.NamespaceID == 0 || !ns.Valid() {
		return Identity{}, false
	}

	return Identity{
		UserID:      claims.UserID,
		Namespace:   ns,
		NamespaceID: claims.NamespaceID,
	}, true
}

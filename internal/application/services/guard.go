package services

import (
	"fmt"

	"github.com/taskmaster/taskclient/internal/domain/entities"
	"github.com/taskmaster/taskclient/internal/ports"
)

// LoginRoute is where unauthenticated navigation is sent.
const LoginRoute = "/login"

// Decision is the outcome of a guard check. Exactly one of Allowed or
// Redirect is set.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Guard gates protected commands on the session state.
type Guard struct {
	session ports.SessionReader
}

// NewGuard creates a guard reading from session.
func NewGuard(session ports.SessionReader) *Guard {
	return &Guard{session: session}
}

// CanEnter allows entry only while a session is present.
func (g *Guard) CanEnter() Decision {
	if g.session.IsAuthenticated() {
		return Decision{Allowed: true}
	}
	return Decision{Redirect: LoginRoute}
}

// Require turns a redirect decision into ErrNotAuthenticated.
func (g *Guard) Require() error {
	d := g.CanEnter()
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: redirecting to %s", entities.ErrNotAuthenticated, d.Redirect)
}

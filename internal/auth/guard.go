// Package auth asks the OS user to authenticate before stored secrets are revealed.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultGracePeriod is how long one successful prompt unlocks secrets.
const DefaultGracePeriod = 5 * time.Minute

// ErrUnavailable is returned when the platform offers no way to authenticate.
var ErrUnavailable = errors.New("OS authentication not available on this system")

// Authenticator prompts the OS user, e.g. with a password or biometric dialog.
type Authenticator interface {
	// Authenticate shows reason to the user and returns nil on success.
	Authenticate(reason string) error
	IsAvailable() bool
}

// Guard remembers a successful authentication for a grace period.
type Guard struct {
	mu            sync.Mutex
	authenticator Authenticator
	gracePeriod   time.Duration
	unlockedAt    time.Time
	now           func() time.Time
}

// NewGuard creates a guard that prompts through authenticator.
func NewGuard(authenticator Authenticator, gracePeriod time.Duration) *Guard {
	return &Guard{
		authenticator: authenticator,
		gracePeriod:   gracePeriod,
		now:           time.Now,
	}
}

// NewPlatformGuard creates a guard using the authenticator of the running OS.
func NewPlatformGuard() *Guard {
	return NewGuard(newPlatformAuthenticator(), DefaultGracePeriod)
}

// Require returns nil when the guard is unlocked, prompting the user if the
// grace period has run out.
func (g *Guard) Require(reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unlockedLocked() {
		return nil
	}
	if g.authenticator == nil || !g.authenticator.IsAvailable() {
		return ErrUnavailable
	}
	if err := g.authenticator.Authenticate(reason); err != nil {
		g.unlockedAt = time.Time{}
		return fmt.Errorf("authentication failed: %w", err)
	}
	g.unlockedAt = g.now()
	return nil
}

// Unlocked reports whether secrets can be revealed without prompting.
func (g *Guard) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlockedLocked()
}

// Lock ends the grace period.
func (g *Guard) Lock() {
	g.mu.Lock()
	g.unlockedAt = time.Time{}
	g.mu.Unlock()
}

func (g *Guard) unlockedLocked() bool {
	return !g.unlockedAt.IsZero() && g.now().Sub(g.unlockedAt) < g.gracePeriod
}

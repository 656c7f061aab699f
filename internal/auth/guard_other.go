//go:build !linux && !darwin

package auth

type unavailableAuthenticator struct{}

func newPlatformAuthenticator() Authenticator {
	return unavailableAuthenticator{}
}

func (unavailableAuthenticator) Authenticate(string) error { return ErrUnavailable }

func (unavailableAuthenticator) IsAvailable() bool { return false }

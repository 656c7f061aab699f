//go:build darwin

package auth

import (
	"fmt"
	"os/exec"
	"strings"
)

// macOSAuthenticator prompts with the administrator dialog, which offers Touch ID when enrolled.
type macOSAuthenticator struct{}

func newPlatformAuthenticator() Authenticator {
	return &macOSAuthenticator{}
}

func (a *macOSAuthenticator) Authenticate(reason string) error {
	prompt := strings.ReplaceAll(reason, `"`, `'`)
	script := fmt.Sprintf(`do shell script "true" with administrator privileges with prompt "%s"`, prompt)
	if err := exec.Command("osascript", "-e", script).Run(); err != nil {
		return fmt.Errorf("osascript: %w", err)
	}
	return nil
}

func (a *macOSAuthenticator) IsAvailable() bool {
	return true
}

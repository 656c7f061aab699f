//go:build linux

package auth

import (
	"fmt"
	"os/exec"
)

// linuxAuthenticator prompts through polkit, or a zenity password dialog.
type linuxAuthenticator struct {
	tool string
}

func newPlatformAuthenticator() Authenticator {
	for _, tool := range []string{"pkexec", "zenity"} {
		if _, err := exec.LookPath(tool); err == nil {
			return &linuxAuthenticator{tool: tool}
		}
	}
	return &linuxAuthenticator{}
}

// promptCommand builds the command that asks the user to authenticate.
// polkit shows the authorized command line, so for pkexec the reason is
// passed as an argument that true ignores.
func promptCommand(tool, reason string) *exec.Cmd {
	switch tool {
	case "pkexec":
		return exec.Command("pkexec", "true", reason)
	case "zenity":
		return exec.Command("zenity", "--password", "--title=mongoexplorer", "--text="+reason)
	default:
		return nil
	}
}

func (a *linuxAuthenticator) Authenticate(reason string) error {
	cmd := promptCommand(a.tool, reason)
	if cmd == nil {
		return ErrUnavailable
	}

	if a.tool == "pkexec" {
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("pkexec: %w", err)
		}
		return nil
	}

	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("%s: %w", a.tool, err)
	}
	if len(out) == 0 {
		return fmt.Errorf("authentication cancelled")
	}
	return nil
}

func (a *linuxAuthenticator) IsAvailable() bool {
	return a.tool != ""
}

//go:build !unix

package procexec

import "os/exec"

// killProcessGroup is a no-op where process groups are unavailable; the
// default exec.CommandContext kill covers the direct child only.
func killProcessGroup(cmd *exec.Cmd) {}

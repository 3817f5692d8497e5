package session

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/pkg/browser"
)

// SystemOpener opens files with a configured command, or with the
// platform's default handler when Command is empty.
type SystemOpener struct {
	// Command is split on whitespace; the path is appended as the last argument.
	Command string
}

// Open implements Opener. The viewer is started and left running.
func (o SystemOpener) Open(path string) error {
	args := strings.Fields(o.Command)
	if len(args) == 0 {
		return browser.OpenFile(path)
	}

	cmd := exec.Command(args[0], append(args[1:], path)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", args[0], err)
	}
	return cmd.Process.Release()
}

package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"
)

// DefaultPlayerCommand plays a file and exits when it ends.
const DefaultPlayerCommand = "ffplay -nodisp -autoexit -loglevel quiet"

// Player plays audio files through an external command. The file path is
// appended as the last argument.
type Player struct {
	Command []string
}

// NewPlayer splits command on whitespace.
func NewPlayer(command string) Player {
	return Player{Command: strings.Fields(command)}
}

// Play writes data to a temporary file named after name and runs the player
// on it, blocking until playback ends or ctx is done.
func (p Player) Play(ctx context.Context, name string, data []byte) error {
	if len(p.Command) == 0 {
		return errors.New("no audio player configured")
	}

	ext := path.Ext(name)
	f, err := os.CreateTemp("", "notebook-reply-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	args := append(append([]string(nil), p.Command[1:]...), f.Name())
	cmd := exec.CommandContext(ctx, p.Command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", p.Command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

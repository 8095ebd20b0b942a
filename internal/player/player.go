// Package player opens a downloaded video in a local media player.
// Players are launched with explicit argument slices, never through a shell.
package player

import (
	"fmt"
	"os"
	"os/exec"
)

// Player plays a local file.
type Player interface {
	// Play opens path and blocks until the player exits.
	Play(path, title string) error

	// Name returns the player name.
	Name() string

	// Available checks if the player binary exists in PATH.
	Available() bool
}

// New creates a player by name. Unknown names are run as a generic player
// that takes the file as its only argument.
func New(name string) Player {
	switch name {
	case "", "mpv":
		return &MPV{}
	case "vlc":
		return &VLC{}
	default:
		return &Generic{name: name}
	}
}

// MPV plays with mpv.
type MPV struct{}

func (m *MPV) Name() string { return "mpv" }

func (m *MPV) Available() bool { return available("mpv") }

func (m *MPV) Play(path, title string) error {
	return run("mpv", path, "--force-media-title="+title, "--really-quiet")
}

// VLC plays with vlc.
type VLC struct{}

func (v *VLC) Name() string { return "vlc" }

func (v *VLC) Available() bool { return available("vlc") }

func (v *VLC) Play(path, title string) error {
	return run("vlc", "--meta-title="+title, "--play-and-exit", path)
}

// Generic runs any other player binary.
type Generic struct {
	name string
}

func (g *Generic) Name() string { return g.name }

func (g *Generic) Available() bool { return available(g.name) }

func (g *Generic) Play(path, _ string) error {
	return run(g.name, path)
}

func available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func run(name string, args ...string) error {
	bin, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH: %w", name, err)
	}

	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		// Players exit non-zero when the user quits early
		if _, ok := err.(*exec.ExitError); ok {
			return nil
		}
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}

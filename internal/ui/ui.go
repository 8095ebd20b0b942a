// Package ui holds the interactive pieces of the CLI: fzf pickers and a
// download progress display. Items reach fzf as plain text on stdin and
// no preview or shell strings are built from remote data.
package ui

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrCancelled is returned when the user aborts a picker.
var ErrCancelled = errors.New("selection cancelled")

// Select shows items in fzf and returns the index of the chosen one.
func Select(prompt string, items []string) (int, error) {
	if len(items) == 0 {
		return -1, fmt.Errorf("no items to select from")
	}

	var input strings.Builder
	for i, item := range items {
		// Tabs inside titles would shift the index field.
		fmt.Fprintf(&input, "%d\t%s\n", i, strings.ReplaceAll(item, "\t", " "))
	}

	out, err := runFzf(input.String(),
		"--prompt", prompt+" > ",
		"--height", "40%",
		"--reverse",
		"--with-nth", "2..",
		"--delimiter", "\t",
		"--no-multi",
		"--cycle",
	)
	if errors.Is(err, errNoMatch) {
		return -1, ErrCancelled
	}
	if err != nil {
		return -1, err
	}

	selected := strings.TrimSpace(out)
	if selected == "" {
		return -1, ErrCancelled
	}
	return parseSelection(selected, len(items))
}

// parseSelection reads the index field of an fzf output line.
func parseSelection(line string, n int) (int, error) {
	field, _, _ := strings.Cut(line, "\t")
	idx, err := strconv.Atoi(field)
	if err != nil {
		return -1, fmt.Errorf("parsing selection index: %w", err)
	}
	if idx < 0 || idx >= n {
		return -1, fmt.Errorf("selection index %d out of range", idx)
	}
	return idx, nil
}

// Confirm asks a yes/no question.
func Confirm(prompt string) (bool, error) {
	idx, err := Select(prompt, []string{"是", "否"})
	if err != nil {
		return false, err
	}
	return idx == 0, nil
}

// Input prompts for one line of free text, such as a pasted share message.
func Input(prompt string) (string, error) {
	// fzf exits 1 with --print-query when nothing matches, which is the
	// normal case here.
	out, err := runFzf("",
		"--prompt", prompt+" > ",
		"--height", "10%",
		"--reverse",
		"--print-query",
		"--no-info",
	)
	if err != nil && !errors.Is(err, errNoMatch) {
		return "", err
	}

	query, _, _ := strings.Cut(out, "\n")
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("no input provided")
	}
	return query, nil
}

var errNoMatch = errors.New("fzf: no match")

func runFzf(stdin string, args ...string) (string, error) {
	fzfPath, err := exec.LookPath("fzf")
	if err != nil {
		return "", fmt.Errorf("fzf not found in PATH: %w", err)
	}

	cmd := exec.Command(fzfPath, args...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stderr = os.Stderr
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			switch exitErr.ExitCode() {
			case 1:
				return stdout.String(), errNoMatch
			case 130:
				return "", ErrCancelled
			}
		}
		return "", fmt.Errorf("fzf failed: %w", err)
	}
	return stdout.String(), nil
}

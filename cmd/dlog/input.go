package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

const stdinPrompt = "Enter the log message, finish with Ctrl-D:"

// captureStdin reads the whole message from in. The prompt is only shown
// when in is an interactive terminal.
func captureStdin(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(prompt, stdinPrompt)
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read message: %w", err)
	}
	return string(data), nil
}

// captureEditor opens editor on an empty temp file and returns what was
// saved. The editor may carry arguments, e.g. "code --wait".
func captureEditor(ctx context.Context, editor string) (string, error) {
	args := strings.Fields(editor)
	if len(args) == 0 {
		return "", fmt.Errorf("no editor configured")
	}

	tmp, err := os.CreateTemp("", "dlog-entry-*.md")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)
	if err := tmp.Close(); err != nil {
		return "", err
	}

	c := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("editor %s: %w", args[0], err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read edited message: %w", err)
	}
	return string(data), nil
}

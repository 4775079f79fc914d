package credential

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const maxPromptAttempts = 3

// TermPrompter reads a password from the terminal with echo disabled and
// asks for it a second time to confirm. Prompts go to Out (stderr by
// default) so stdout stays reserved for status lines.
type TermPrompter struct {
	Out io.Writer
	Fd  int

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

// NewTermPrompter prompts on stdin/stderr.
func NewTermPrompter() *TermPrompter {
	return &TermPrompter{
		Out:          os.Stderr,
		Fd:           int(os.Stdin.Fd()),
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// Prompt asks for the password and its confirmation. A mismatch or an
// empty answer starts over, up to three times.
func (p *TermPrompter) Prompt() (string, error) {
	if !p.isTerminal(p.Fd) {
		return "", fmt.Errorf("%w: no terminal available to ask for the Tapo password", ErrPrompt)
	}

	fmt.Fprintln(p.Out, "Enter the password of your Tapo account. It will be saved to your keyring.")
	for attempt := 1; attempt <= maxPromptAttempts; attempt++ {
		first, err := p.read("Tapo password > ")
		if err != nil {
			return "", fmt.Errorf("%w: reading password: %v", ErrPrompt, err)
		}
		if len(first) == 0 {
			fmt.Fprintln(p.Out, "Password must not be empty.")
			continue
		}

		second, err := p.read("Confirm       > ")
		if err != nil {
			zeroBytes(first)
			return "", fmt.Errorf("%w: reading password confirmation: %v", ErrPrompt, err)
		}

		match := bytes.Equal(first, second)
		zeroBytes(second)
		if match {
			secret := string(first)
			zeroBytes(first)
			return secret, nil
		}
		zeroBytes(first)
		fmt.Fprintln(p.Out, "Passwords do not match.")
	}
	return "", fmt.Errorf("%w: no matching password after %d attempts", ErrPrompt, maxPromptAttempts)
}

func (p *TermPrompter) read(label string) ([]byte, error) {
	fmt.Fprint(p.Out, label)
	b, err := p.readPassword(p.Fd)
	fmt.Fprintln(p.Out)
	return b, err
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

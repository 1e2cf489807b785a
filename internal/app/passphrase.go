package app

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// PassphraseEnv names the environment variable that can supply the passphrase.
const PassphraseEnv = "GENSTUDIO_PASSPHRASE"

// ReadPassphrase returns the passphrase from GENSTUDIO_PASSPHRASE or, failing
// that, prompts for it on the terminal without echo.
func ReadPassphrase() (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}
	return promptPassphrase(os.Stderr, "Passphrase: ")
}

// ReadNewPassphrase is ReadPassphrase for key setup: an interactive
// passphrase must be typed twice.
func ReadNewPassphrase() (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}
	first, err := promptPassphrase(os.Stderr, "New passphrase: ")
	if err != nil {
		return "", err
	}
	second, err := promptPassphrase(os.Stderr, "Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

func promptPassphrase(w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set %s to supply the passphrase", PassphraseEnv)
	}

	fmt.Fprint(w, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(b), nil
}

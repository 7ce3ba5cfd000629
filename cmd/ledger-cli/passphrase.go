package main

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/hotsaucejake/ledger-sub000/pkg/ledger"
)

// readPassphrase prompts prompt on stderr and reads a passphrase without
// echoing it, falling back to a plain line read when stdin isn't a
// terminal (piped input, CI).
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return trimNewline(line), nil
	}
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(raw), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// openLedger prompts once and opens path under the resulting passphrase. It
// returns the passphrase alongside the handle so callers can close with the
// same value via defer, without prompting again.
func openLedger(path string) (*ledger.Ledger, string, error) {
	pass, err := readPassphrase(fmt.Sprintf("passphrase for %s: ", path))
	if err != nil {
		return nil, "", err
	}
	l, err := ledger.Open(pass, ledger.Config{Path: path, Logger: &logger, MaxListLimit: maxListLimit})
	if err != nil {
		return nil, "", err
	}
	return l, pass, nil
}

// createLedger prompts twice, requiring the entries to match, then creates
// a brand-new ledger file at path.
func createLedger(path string) (*ledger.Ledger, string, error) {
	pass, err := readPassphrase(fmt.Sprintf("new passphrase for %s: ", path))
	if err != nil {
		return nil, "", err
	}
	confirm, err := readPassphrase("confirm passphrase: ")
	if err != nil {
		return nil, "", err
	}
	if pass != confirm {
		return nil, "", fmt.Errorf("passphrases did not match")
	}
	l, deviceID, err := ledger.Create(pass, ledger.Config{Path: path, Logger: &logger, MaxListLimit: maxListLimit})
	if err != nil {
		return nil, "", err
	}
	fmt.Fprintf(os.Stderr, "created ledger, device id %s\n", deviceID)
	return l, pass, nil
}

// closeLedgerLogged closes l under pass, logging (not failing the command
// fatally) if the close itself errors — the mutation already succeeded in
// memory by this point.
func closeLedgerLogged(l *ledger.Ledger, pass string) {
	if err := l.Close(pass); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close ledger: %v\n", err)
	}
}

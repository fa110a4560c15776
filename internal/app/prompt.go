package app

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/megarelay/internal/common"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// PromptMasterPassword asks for the master password on an interactive stdin.
// It returns "" without prompting when stdin is not a terminal, which leaves
// storage secrets unsealed.
func PromptMasterPassword(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", nil
	}

	if _, err := fmt.Fprint(w, "Master password (empty to skip): "); err != nil {
		return "", err
	}
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read master password: %w", err)
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

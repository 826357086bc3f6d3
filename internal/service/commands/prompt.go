package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the user for credentials.
type Prompter struct {
	// in is the input stream; it is a terminal for interactive use.
	in *os.File
	// reader buffers in when it is not a terminal.
	reader *bufio.Reader
	// out receives the prompts.
	out io.Writer
}

// NewPrompter reads answers from in and writes prompts to out.
func NewPrompter(in *os.File, out io.Writer) *Prompter {
	return &Prompter{
		in:     in,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Username asks for the account email.
func (p *Prompter) Username() (string, error) {
	_, _ = fmt.Fprint(p.out, "Email: ")

	return p.readLine()
}

// Password asks for the password, hiding input on a terminal.
func (p *Prompter) Password() (string, error) {
	_, _ = fmt.Fprint(p.out, "Password: ")

	fd := int(p.in.Fd()) //nolint:gosec // File descriptors fit in int.
	if !term.IsTerminal(fd) {
		return p.readLine()
	}

	secret, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(p.out)

	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return string(secret), nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("read input: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// Package cli holds the interactive terminal front ends: the vault REPL and the
// admin menu. Both read lines from an io.Reader and write to an io.Writer so they
// can be driven by scripted input in tests.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// errQuit ends a loop cleanly.
var errQuit = errors.New("quit")

// Console reads prompts and passwords from one input stream.
type Console struct {
	in  *bufio.Reader
	out io.Writer

	// readPassword reads a secret without echo. It falls back to a plain
	// line read when the input is not a terminal.
	readPassword func() (string, error)
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{in: bufio.NewReader(in), out: out}
	c.readPassword = c.readLine
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		c.readPassword = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(c.out)
			return string(b), err
		}
	}
	return c
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", errQuit
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Prompt prints label and returns the trimmed answer.
func (c *Console) Prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	line, err := c.readLine()
	return strings.TrimSpace(line), err
}

// Password prints label and reads a secret.
func (c *Console) Password(label string) (string, error) {
	fmt.Fprint(c.out, label)
	s, err := c.readPassword()
	if errors.Is(err, io.EOF) {
		return "", errQuit
	}
	return s, err
}

func (c *Console) Println(a ...interface{}) {
	fmt.Fprintln(c.out, a...)
}

func (c *Console) Printf(format string, a ...interface{}) {
	fmt.Fprintf(c.out, format, a...)
}

// Fail prints a service error and lets the caller continue its loop.
func (c *Console) Fail(err error) {
	fmt.Fprintf(c.out, "error: %v\n", err)
}

// ABOUTME: Interactive prompting utilities for CLI input.
// ABOUTME: Handles text and secure token input from a terminal or pipe.
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

// prompter handles basic interactive input.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

func (p *prompter) Ask(label string, defaultValue string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s", label); err != nil {
		return "", err
	}
	if defaultValue != "" {
		if _, err := fmt.Fprintf(p.out, " [%s]", defaultValue); err != nil {
			return "", err
		}
	}
	if _, err := fmt.Fprint(p.out, ": "); err != nil {
		return "", err
	}

	text, err := p.readLine()
	if err != nil {
		return "", err
	}
	if text == "" {
		return defaultValue, nil
	}
	return text, nil
}

// AskSecret reads a value without echo on a terminal. Piped input is read
// as a single line and no prompt is printed.
func (p *prompter) AskSecret(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			if _, err := fmt.Fprintf(p.out, "%s: ", label); err != nil {
				return "", err
			}
			bytes, err := term.ReadPassword(fd)
			_, _ = fmt.Fprintln(p.out)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(string(bytes)), nil
		}
	}

	return p.readLine()
}

// readLine accepts a final line without a trailing newline.
func (p *prompter) readLine() (string, error) {
	text, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && text != "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

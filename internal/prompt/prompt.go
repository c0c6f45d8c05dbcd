// Package prompt reads interactive answers for login and signup.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned when input ends before an answer was read.
var ErrNoInput = errors.New("no input")

// Prompter asks the user for values.
type Prompter interface {
	// Line reads a visible answer.
	Line(label string) (string, error)

	// Secret reads an answer without echoing it when input is a terminal.
	Secret(label string) (string, error)
}

// Terminal prompts on out and reads from in.
type Terminal struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

// NewTerminal creates a Terminal prompter.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out, reader: bufio.NewReader(in)}
}

// Line implements Prompter.
func (t *Terminal) Line(label string) (string, error) {
	fmt.Fprint(t.out, label)
	return readLine(t.reader)
}

// Secret implements Prompter. Piped input is read as a plain line.
func (t *Terminal) Secret(label string) (string, error) {
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		fmt.Fprint(t.out, label)
		return readLine(t.reader)
	}

	fmt.Fprint(t.out, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Scripted answers prompts from a fixed list, in order.
type Scripted struct {
	Answers []string
	Asked   []string
}

// Line implements Prompter.
func (s *Scripted) Line(label string) (string, error) {
	return s.next(label)
}

// Secret implements Prompter.
func (s *Scripted) Secret(label string) (string, error) {
	return s.next(label)
}

func (s *Scripted) next(label string) (string, error) {
	s.Asked = append(s.Asked, label)
	if len(s.Answers) == 0 {
		return "", ErrNoInput
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	return a, nil
}

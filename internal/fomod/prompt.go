package fomod

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrInputClosed is returned when the prompt's input ends before a choice is made
var ErrInputClosed = errors.New("input closed")

// InputKind is the kind of answer read from the user
type InputKind int

const (
	InputIndex InputKind = iota
	InputDone
	InputExit
)

// Input is one parsed answer
type Input struct {
	Kind  InputKind
	Index int
}

// Prompter shows a group and reads choices for it
type Prompter interface {
	// Show presents a group; allowDone says whether "done" is accepted
	Show(step string, g *Group, allowDone bool)
	// Read blocks until a syntactically valid answer arrives
	Read(allowDone bool) (Input, error)
	// Notify prints a short message such as a rejected choice
	Notify(msg string)
}

// LinePrompter reads one answer per line
type LinePrompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewLinePrompter creates a prompter over in and out
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewScanner(in), out: out}
}

func (p *LinePrompter) Show(step string, g *Group, allowDone bool) {
	fmt.Fprintln(p.out)
	if step != "" {
		fmt.Fprintf(p.out, "Install Step: %s\n", step)
	}
	fmt.Fprintf(p.out, "Group Name: %s\n", g.Name)

	switch g.Type {
	case SelectAll:
		for _, pl := range g.Plugins {
			fmt.Fprintf(p.out, "%s\n%s\n", pl.Name, pl.Description)
		}
		return
	case SelectExactlyOne:
		fmt.Fprintln(p.out, "Please select one of the following:")
	case SelectAtMostOne:
		fmt.Fprintln(p.out, "Please select at most one of the following:")
	case SelectAtLeastOne:
		fmt.Fprintln(p.out, "Please select at least one of the following:")
	default:
		fmt.Fprintln(p.out, "Please select any of the following:")
	}

	for i, pl := range g.Plugins {
		fmt.Fprintf(p.out, "%d) %s: %s\n", i, pl.Name, pl.Description)
	}
	if allowDone {
		fmt.Fprintln(p.out, "D) Done with the selection")
	}
	fmt.Fprintln(p.out, "E) Exit Installer")
}

func (p *LinePrompter) Read(allowDone bool) (Input, error) {
	for {
		fmt.Fprint(p.out, "Select : ")
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return Input{}, fmt.Errorf("reading choice: %w", err)
			}
			return Input{}, ErrInputClosed
		}

		in, ok := ParseInput(p.in.Text(), allowDone)
		if ok {
			return in, nil
		}
		p.Notify("Invalid choice")
	}
}

func (p *LinePrompter) Notify(msg string) {
	fmt.Fprintln(p.out, msg)
}

// ParseInput understands e/exit, d/done (when allowed) and non-negative integers
func ParseInput(line string, allowDone bool) (Input, bool) {
	s := strings.ToLower(strings.TrimSpace(line))
	switch s {
	case "e", "exit":
		return Input{Kind: InputExit}, true
	case "d", "done":
		if allowDone {
			return Input{Kind: InputDone}, true
		}
		return Input{}, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Input{}, false
	}
	return Input{Kind: InputIndex, Index: n}, true
}

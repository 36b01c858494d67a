// Package checker compares a program's output with the expected answer,
// line by line and character by character.
package checker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var ErrFileFormat = errors.New("file format error")

const maxLineSize = 64 * 1024 * 1024

type Outcome struct {
	Match bool
	// set for mismatches
	Message string
}

func match() Outcome {
	return Outcome{Match: true}
}

func mismatch(format string, args ...any) Outcome {
	return Outcome{Message: fmt.Sprintf(format, args...)}
}

type Options struct {
	// Accept when one file runs out of lines before the other.
	AllowTrailingLines bool
	// Reject a produced line that is a strict prefix of the expected line.
	RejectShortLines bool
}

type Checker struct {
	opts Options
}

func NewChecker(opts Options) *Checker {
	return &Checker{opts: opts}
}

// Compare is a pure function of both files' contents. Unreadable or non
// UTF-8 input yields an error wrapping ErrFileFormat.
func (c *Checker) Compare(producedPath, expectedPath string) (Outcome, error) {
	produced, err := os.Open(producedPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	defer produced.Close()
	expected, err := os.Open(expectedPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	defer expected.Close()
	return c.CompareReaders(produced, expected)
}

func (c *Checker) CompareReaders(produced, expected io.Reader) (Outcome, error) {
	got := newLineScanner(produced)
	want := newLineScanner(expected)

	for line := 1; ; line++ {
		wantLine, wantOk, err := want.next()
		if err != nil {
			return Outcome{}, errors.Wrap(err, "expected output")
		}
		gotLine, gotOk, err := got.next()
		if err != nil {
			return Outcome{}, errors.Wrap(err, "program output")
		}

		switch {
		case !wantOk && !gotOk:
			return match(), nil
		case !wantOk:
			if c.opts.AllowTrailingLines {
				return match(), nil
			}
			return mismatch("output too long on line %d", line), nil
		case !gotOk:
			if c.opts.AllowTrailingLines {
				return match(), nil
			}
			return mismatch("output too short on line %d", line), nil
		}

		if out, ok := c.compareLine(line, gotLine, wantLine); !ok {
			return out, nil
		}
	}
}

func (c *Checker) compareLine(line int, got, want []rune) (Outcome, bool) {
	if len(want) < len(got) {
		return mismatch("output too long on line %d", line), false
	}
	for j := range got {
		if got[j] != want[j] {
			return mismatch("line %d column %d: read %c, expected %c", line, j+1, got[j], want[j]), false
		}
	}
	if c.opts.RejectShortLines && len(got) < len(want) {
		return mismatch("output too short on line %d", line), false
	}
	return Outcome{}, true
}

type lineScanner struct {
	s *bufio.Scanner
}

func newLineScanner(r io.Reader) *lineScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineScanner{s: s}
}

// next returns the next line without its "\n" or "\r\n" terminator.
func (l *lineScanner) next() ([]rune, bool, error) {
	if !l.s.Scan() {
		if err := l.s.Err(); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrFileFormat, err)
		}
		return nil, false, nil
	}
	b := l.s.Bytes()
	if !utf8.Valid(b) {
		return nil, false, fmt.Errorf("%w: invalid utf-8", ErrFileFormat)
	}
	return []rune(string(b)), true, nil
}

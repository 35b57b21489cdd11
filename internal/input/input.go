// Package input reads flag values from stdin ("-") and files ("@path").
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrStdinUsed is returned when more than one value asks for stdin.
var ErrStdinUsed = errors.New("stdin already used by another flag")

// Reader expands "-" and "@path" flag values. Stdin may be consumed once.
type Reader struct {
	Stdin     io.Reader
	stdinUsed bool
}

// New returns a Reader over os.Stdin.
func New() *Reader {
	return &Reader{Stdin: os.Stdin}
}

// Text returns v verbatim, the whole of stdin for "-", or the contents of
// the file for "@path". Trailing newlines are trimmed.
func (r *Reader) Text(v string) (string, error) {
	switch {
	case v == "-":
		if r.stdinUsed {
			return "", ErrStdinUsed
		}
		r.stdinUsed = true
		data, err := io.ReadAll(r.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	case strings.HasPrefix(v, "@") && len(v) > 1:
		data, err := os.ReadFile(v[1:])
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	return v, nil
}

// Lines expands repeatable values: "-" and "@path" contribute one value
// per non-empty line, anything else is kept as is.
func (r *Reader) Lines(values []string) ([]string, error) {
	var result []string
	for _, v := range values {
		switch {
		case v == "-":
			if r.stdinUsed {
				return nil, ErrStdinUsed
			}
			r.stdinUsed = true
			result = append(result, ReadLinesFromReader(r.Stdin)...)
		case strings.HasPrefix(v, "@") && len(v) > 1:
			file, err := os.Open(v[1:])
			if err != nil {
				return nil, err
			}
			lines := ReadLinesFromReader(file)
			file.Close()
			result = append(result, lines...)
		default:
			result = append(result, v)
		}
	}
	return result, nil
}

// ReadLinesFromReader reads non-empty lines from a reader.
func ReadLinesFromReader(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

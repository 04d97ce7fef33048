// Package sse parses Server-Sent Event streams, as emitted by agent
// backends that push session events over a single long-lived HTTP response.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is one parsed SSE frame.
type Event struct {
	// Type is the "event:" field, empty for the default event type.
	Type string
	// Data is the payload, with multiple "data:" lines joined by newlines.
	Data string
}

// Scanner reads SSE frames from a stream. Frames are delimited by blank
// lines; comment lines and unrecognized fields are skipped.
type Scanner struct {
	r       *bufio.Reader
	current Event
	err     error
}

// NewScanner creates a scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next frame. It returns false on EOF or error;
// call Err to distinguish the two.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	s.current = Event{}

	var data []string
	var eventType string

	for {
		line, err := s.r.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF && len(data) > 0 {
				s.current = Event{Type: eventType, Data: strings.Join(data, "\n")}
				s.err = io.EOF
				return true
			}
			s.err = err
			return false
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if len(data) > 0 {
				s.current = Event{Type: eventType, Data: strings.Join(data, "\n")}
				return true
			}
			eventType = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
		case "event":
			eventType = value
		}
	}
}

// Event returns the frame parsed by the last successful Next.
func (s *Scanner) Event() Event { return s.current }

// Err returns the first non-EOF error encountered.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

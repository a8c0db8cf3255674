package embedkit

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// sseFrame is one server-sent event: an optional event name and the joined
// data payload.
type sseFrame struct {
	Event string
	Data  []byte
}

// sseParser incrementally decodes a text/event-stream body. It tolerates
// CRLF line endings, comment lines, and a final frame that is not
// newline-terminated.
type sseParser struct {
	reader *bufio.Reader
}

func newSSEParser(r io.Reader) *sseParser {
	return &sseParser{reader: bufio.NewReader(r)}
}

// Next returns the next complete frame, or io.EOF once the stream is
// exhausted. Transport errors surface verbatim.
func (p *sseParser) Next() (sseFrame, error) {
	var eventType string
	var dataLines []string

	flush := func() (sseFrame, error) {
		if len(dataLines) == 0 && eventType == "" {
			return sseFrame{}, io.EOF
		}
		return sseFrame{Event: eventType, Data: []byte(strings.Join(dataLines, "\n"))}, nil
	}

	for {
		line, err := p.reader.ReadString('\n')
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return sseFrame{}, err
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		switch {
		case line == "":
			if len(dataLines) == 0 && eventType == "" {
				if eof {
					return sseFrame{}, io.EOF
				}
				continue
			}
			return sseFrame{Event: eventType, Data: []byte(strings.Join(dataLines, "\n"))}, nil

		case strings.HasPrefix(line, ":"):
			// Comment / keep-alive line.

		default:
			field, value := splitSSEField(line)
			switch field {
			case "event":
				eventType = value
			case "data":
				dataLines = append(dataLines, value)
			}
		}

		if eof {
			return flush()
		}
	}
}

func splitSSEField(line string) (field string, value string) {
	index := strings.IndexByte(line, ':')
	if index < 0 {
		return line, ""
	}
	field = line[:index]
	value = line[index+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}

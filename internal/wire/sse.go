package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Event names carried on the stream.
const (
	EventMessage = "message"
	EventDelete  = "delete"
	EventHello   = "hello"
	EventPing    = "ping"
)

// ErrMalformed marks a payload that does not decode into the shape its
// event name promises. Callers drop such events.
var ErrMalformed = errors.New("malformed payload")

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  []byte
}

// NewFrame marshals data as the frame payload.
func NewFrame(event string, data any) (Frame, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s frame: %w", event, err)
	}
	return Frame{Event: event, Data: b}, nil
}

// Encode writes f in text/event-stream format. Multi-line data is split
// across several data fields.
func (f Frame) Encode(w io.Writer) error {
	var buf bytes.Buffer
	if f.Event != "" {
		buf.WriteString("event: ")
		buf.WriteString(f.Event)
		buf.WriteByte('\n')
	}
	for _, line := range bytes.Split(f.Data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// Parser reads frames from a text/event-stream body.
//
// A frame with a line longer than MaxLine is skipped whole; the parser
// resynchronizes at the next blank line and the stream stays usable.
type Parser struct {
	r       *bufio.Reader
	dropped int
}

// MaxLine bounds a single stream line.
const MaxLine = 1 << 20

// NewParser creates a parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReaderSize(r, 4096)}
}

// Dropped returns the number of oversized frames skipped so far.
func (p *Parser) Dropped() int {
	return p.dropped
}

// Next returns the next frame with a non-empty data field. It returns
// io.EOF when the stream ends cleanly; a partial frame at EOF is dropped.
func (p *Parser) Next() (Frame, error) {
	var (
		event     string
		data      []string
		hasData   bool
		oversized bool
	)
	for {
		line, tooLong, err := p.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Frame{}, io.EOF
			}
			return Frame{}, fmt.Errorf("read event stream: %w", err)
		}
		if tooLong {
			oversized = true
			continue
		}
		if line == "" {
			if oversized {
				p.dropped++
				slog.Warn("dropping oversized event", "event", event, "limit", MaxLine)
				event, data, hasData, oversized = "", nil, false, false
				continue
			}
			if hasData {
				return Frame{Event: event, Data: []byte(strings.Join(data, "\n"))}, nil
			}
			event = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			if !oversized {
				data = append(data, value)
			}
			hasData = true
		}
	}
}

// readLine returns one line without its terminator. A line longer than
// MaxLine is consumed and discarded, and reported with tooLong. A final
// line without a terminator is discarded and the read error returned.
func (p *Parser) readLine() (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, err := p.r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > MaxLine+2 {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return "", tooLong, err
		}
		break
	}
	line = strings.TrimSuffix(strings.TrimSuffix(string(buf), "\n"), "\r")
	return line, tooLong, nil
}

// Event is a decoded frame.
type Event struct {
	Type    string
	Message Message // EventMessage
	ID      string  // EventDelete
	TS      int64   // EventHello, EventPing
}

// DecodeEvent decodes and validates the payload of f. Unknown event names
// and payloads that fail validation return an error wrapping ErrMalformed.
func DecodeEvent(f Frame) (Event, error) {
	ev := Event{Type: f.Event}
	switch f.Event {
	case EventMessage:
		if err := decodeJSON(f.Data, &ev.Message); err != nil {
			return Event{}, err
		}
		if err := Validate(ev.Message); err != nil {
			return Event{}, err
		}
	case EventDelete:
		var p DeletePayload
		if err := decodeJSON(f.Data, &p); err != nil {
			return Event{}, err
		}
		if err := Validate(p); err != nil {
			return Event{}, err
		}
		ev.ID = p.ID
	case EventHello, EventPing:
		var p TickPayload
		if err := decodeJSON(f.Data, &p); err != nil {
			return Event{}, err
		}
		ev.TS = p.TS
	default:
		return Event{}, fmt.Errorf("%w: unknown event %q", ErrMalformed, f.Event)
	}
	return ev, nil
}

func decodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Origin says which column a message is drawn in.
type Origin string

const (
	OriginLocal  Origin = "right"
	OriginRemote Origin = "left"
)

// ErrMalformedPayload is returned when an inbound frame is not a JSON payload.
var ErrMalformedPayload = errors.New("malformed payload")

// Message is one displayed chat line. It is never modified after creation.
type Message struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Sender string    `json:"sender,omitempty"`
	Origin Origin    `json:"origin"`
	At     time.Time `json:"at"`
}

func newMessage(text, sender string, origin Origin) Message {
	return Message{
		ID:     uuid.NewString(),
		Text:   text,
		Sender: sender,
		Origin: origin,
		At:     time.Now().UTC(),
	}
}

// Payload is the relay wire format, used for outbound POST bodies and
// inbound socket frames alike.
type Payload struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// EncodePayload writes p as JSON. HTML escaping is disabled so that
// characters like <, >, & reach the relay unchanged.
func EncodePayload(w io.Writer, p Payload) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(p)
}

// MarshalPayload is EncodePayload into a byte slice.
func MarshalPayload(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePayload(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePayload parses one inbound frame. A missing sender decodes as "".
func DecodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}

// DecodeFrame parses one inbound frame holding either a single payload
// object or a JSON array of payloads.
func DecodeFrame(raw []byte) ([]Payload, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '[' {
		p, err := DecodePayload(raw)
		if err != nil {
			return nil, err
		}
		return []Payload{p}, nil
	}
	var ps []Payload
	if err := json.Unmarshal(trimmed, &ps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return ps, nil
}

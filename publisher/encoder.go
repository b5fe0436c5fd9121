package publisher

import (
	"encoding/json"
)

// Record is one payload to publish. Label names the table it came from.
type Record struct {
	Label   string
	Payload any
}

type Encoder interface {
	Encode(r Record) ([]byte, error)
}

type EncodeFunc func(r Record) ([]byte, error)

func (f EncodeFunc) Encode(r Record) ([]byte, error) {
	return f(r)
}

// JSONEncoder marshals the payload, optionally wrapped as {"data": payload}.
type JSONEncoder struct {
	Envelope bool
}

func (e JSONEncoder) Encode(r Record) ([]byte, error) {
	if e.Envelope {
		return json.Marshal(map[string]any{"data": r.Payload})
	}
	return json.Marshal(r.Payload)
}

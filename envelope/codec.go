// Package envelope implements the pre-encryption wire shape of the
// protocol: a JSON document carrying either a correlated request
// ({"request": <payload>, "id": <u64>}) or a fire-and-forget message
// ({"message": <payload>}). Responses travel as the bare payload
// document on the reply channel and need no wrapper.
package envelope

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/relaymesh/courier/domain"
)

// Document is a structured payload in its serialized form.
type Document = json.RawMessage

// Kind discriminates the two inbound envelope shapes.
type Kind int

const (
	KindRequest Kind = iota
	KindMessage
)

// Inbound is a classified envelope.
type Inbound struct {
	Kind    Kind
	ID      uint64
	Payload Document
}

type requestEnvelope struct {
	ID      uint64   `json:"id"`
	Request Document `json:"request"`
}

type messageEnvelope struct {
	Message Document `json:"message"`
}

// ToDocument converts a typed value into a payload document. This is
// the serialization contract every request, response and message type
// must satisfy; any value usable with encoding/json qualifies.
func ToDocument[T any](val T) (Document, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return nil, &domain.ConversionError{Target: typeName[T](), Err: err}
	}

	return data, nil
}

// FromDocument converts a payload document into the statically
// expected type of its slot.
func FromDocument[T any](doc Document) (T, error) {
	var val T
	if err := json.Unmarshal(doc, &val); err != nil {
		return val, &domain.ConversionError{Target: typeName[T](), Err: err}
	}

	return val, nil
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

func EncodeRequest(id uint64, payload Document) (Document, error) {
	data, err := json.Marshal(requestEnvelope{ID: id, Request: payload})
	if err != nil {
		return nil, fmt.Errorf(`encoding request envelope failed - %v`, err)
	}

	return data, nil
}

func EncodeMessage(payload Document) (Document, error) {
	data, err := json.Marshal(messageEnvelope{Message: payload})
	if err != nil {
		return nil, fmt.Errorf(`encoding message envelope failed - %v`, err)
	}

	return data, nil
}

// EncodeResponse renders a response for the reply channel. Responses
// are sent as the bare payload document.
func EncodeResponse(payload Document) Document {
	return payload
}

// Classify decides whether a decrypted document is a request or a
// message. A document matching neither shape is a malformed-envelope
// error, never silently dropped.
func Classify(doc Document) (*Inbound, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf(`%w - %v`, domain.ErrMalformedEnvelope, err)
	}

	if payload, ok := fields[`request`]; ok {
		rawID, ok := fields[`id`]
		if !ok {
			return nil, fmt.Errorf(`%w - request without an id`, domain.ErrMalformedEnvelope)
		}

		var id uint64
		if err := json.Unmarshal(rawID, &id); err != nil {
			return nil, fmt.Errorf(`%w - non-numeric request id`, domain.ErrMalformedEnvelope)
		}

		return &Inbound{Kind: KindRequest, ID: id, Payload: payload}, nil
	}

	if payload, ok := fields[`message`]; ok {
		return &Inbound{Kind: KindMessage, Payload: payload}, nil
	}

	return nil, domain.ErrMalformedEnvelope
}

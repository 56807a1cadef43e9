package envelope_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaymesh/courier/domain"
	"github.com/relaymesh/courier/envelope"
)

type testPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestDocumentRoundTrip(t *testing.T) {
	requireT := require.New(t)

	in := testPayload{Name: `ping`, Count: 42}
	doc, err := envelope.ToDocument(in)
	requireT.NoError(err)

	out, err := envelope.FromDocument[testPayload](doc)
	requireT.NoError(err)
	requireT.Equal(in, out)
}

func TestFromDocumentConversionError(t *testing.T) {
	requireT := require.New(t)

	_, err := envelope.FromDocument[testPayload](envelope.Document(`{"count":"not-a-number"}`))
	requireT.Error(err)

	var convErr *domain.ConversionError
	requireT.True(errors.As(err, &convErr))
}

func TestEncodeRequestShape(t *testing.T) {
	requireT := require.New(t)

	doc, err := envelope.EncodeRequest(42, envelope.Document(`{"name":"ping"}`))
	requireT.NoError(err)

	var fields map[string]json.RawMessage
	requireT.NoError(json.Unmarshal(doc, &fields))
	requireT.Contains(fields, `request`)
	requireT.Contains(fields, `id`)
	requireT.JSONEq(`{"name":"ping"}`, string(fields[`request`]))
	requireT.Equal(`42`, string(fields[`id`]))
}

func TestEncodeMessageShape(t *testing.T) {
	requireT := require.New(t)

	doc, err := envelope.EncodeMessage(envelope.Document(`"hello"`))
	requireT.NoError(err)
	requireT.JSONEq(`{"message":"hello"}`, string(doc))
}

func TestEncodeResponseIsBarePayload(t *testing.T) {
	payload := envelope.Document(`{"name":"pong"}`)
	require.Equal(t, payload, envelope.EncodeResponse(payload))
}

func TestClassifyRequest(t *testing.T) {
	requireT := require.New(t)

	inbound, err := envelope.Classify(envelope.Document(`{"request":{"name":"ping"},"id":42}`))
	requireT.NoError(err)
	requireT.Equal(envelope.KindRequest, inbound.Kind)
	requireT.Equal(uint64(42), inbound.ID)
	requireT.JSONEq(`{"name":"ping"}`, string(inbound.Payload))
}

func TestClassifyMessage(t *testing.T) {
	requireT := require.New(t)

	inbound, err := envelope.Classify(envelope.Document(`{"message":"hello"}`))
	requireT.NoError(err)
	requireT.Equal(envelope.KindMessage, inbound.Kind)
	requireT.JSONEq(`"hello"`, string(inbound.Payload))
}

func TestClassifyMalformed(t *testing.T) {
	cases := map[string]string{
		`empty object`:       `{}`,
		`unknown key`:        `{"foo":1}`,
		`request missing id`: `{"request":{"name":"ping"}}`,
		`non-numeric id`:     `{"request":{},"id":"42"}`,
		`not an object`:      `[1,2,3]`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := envelope.Classify(envelope.Document(doc))
			require.ErrorIs(t, err, domain.ErrMalformedEnvelope)
		})
	}
}

func TestClassifyRoundTrip(t *testing.T) {
	requireT := require.New(t)

	payload, err := envelope.ToDocument(testPayload{Name: `ping`, Count: 1})
	requireT.NoError(err)

	doc, err := envelope.EncodeRequest(7, payload)
	requireT.NoError(err)

	inbound, err := envelope.Classify(doc)
	requireT.NoError(err)
	requireT.Equal(uint64(7), inbound.ID)

	out, err := envelope.FromDocument[testPayload](inbound.Payload)
	requireT.NoError(err)
	requireT.Equal(testPayload{Name: `ping`, Count: 1}, out)
}

// Package codec is the single JSON codec used for component values and snapshots.
package codec

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

type RawMessage = json.RawMessage

func Decode[T any](bz []byte) (T, error) {
	comp := new(T)
	err := json.Unmarshal(bz, comp)
	if err != nil {
		return *comp, eris.Wrap(err, "")
	}
	return *comp, nil
}

func Encode(comp any) ([]byte, error) {
	bz, err := json.Marshal(comp)
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	return bz, nil
}

// DecodeStrict is Decode with unknown object fields rejected.
func DecodeStrict[T any](bz []byte) (T, error) {
	comp := new(T)
	dec := json.NewDecoder(bytes.NewReader(bz))
	dec.DisallowUnknownFields()
	if err := dec.Decode(comp); err != nil {
		return *comp, eris.Wrap(err, "")
	}
	return *comp, nil
}

// NewDecoder exposes the streaming decoder for callers that walk tokens.
func NewDecoder(bz []byte) *json.Decoder {
	return json.NewDecoder(bytes.NewReader(bz))
}

// Compact strips insignificant whitespace from bz.
func Compact(bz []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bz); err != nil {
		return nil, eris.Wrap(err, "")
	}
	return buf.Bytes(), nil
}

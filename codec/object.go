package codec

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Member is one key of a JSON object with its undecoded value.
type Member struct {
	Key   string
	Value RawMessage
}

// DecodeObject splits a JSON object into its members, keeping the order they appear in bz.
func DecodeObject(bz []byte) ([]Member, error) {
	dec := NewDecoder(bz)
	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, eris.Errorf("expected a JSON object, got %v", tok)
	}
	var members []Member
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, eris.Errorf("expected an object key, got %v", tok)
		}
		var value RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, eris.Wrapf(err, "invalid value for key %q", key)
		}
		members = append(members, Member{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "")
	}
	return members, nil
}

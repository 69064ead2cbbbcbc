package snapshot

import (
	"github.com/rotisserie/eris"
	"github.com/wI2L/jsondiff"

	"pkg.world.dev/world-engine/ecstore/codec"
)

// Diff returns the RFC 6902 JSON patch turning snapshot prev into next. Identical snapshots yield "[]".
func Diff(prev, next []byte) ([]byte, error) {
	patch, err := jsondiff.CompareJSON(prev, next)
	if err != nil {
		return nil, eris.Wrap(err, "failed to compare snapshots")
	}
	if len(patch) == 0 {
		return []byte("[]"), nil
	}
	return codec.Encode(patch)
}

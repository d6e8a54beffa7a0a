package trust

import (
	"encoding/json"
	"fmt"
)

// signatureFields lists the JSON keys stripped before computing the
// canonical, signed payload. Every signed object type in this package
// uses one of these names for its signature-bearing field.
var signatureFields = []string{"signature", "signatures"}

// Canonicalize produces the deterministic byte representation of v used
// both to produce and to verify a signature: fields in sorted key order,
// no insignificant whitespace, numbers in Go's default JSON formatting,
// and the signature field(s) removed. Both the signer and every verifier
// MUST use this function, or signatures will silently fail to match.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanonicalizationFail, err)
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanonicalizationFail, err)
	}
	for _, f := range signatureFields {
		delete(asMap, f)
	}

	return canonicalMarshal(asMap)
}

// canonicalMarshal re-encodes a decoded JSON value with map keys in
// sorted order at every nesting level and no insignificant whitespace.
// encoding/json already sorts map[string]interface{} keys and emits
// compact output, so a direct Marshal suffices once every level has been
// round-tripped through the same decode/encode path.
func canonicalMarshal(v interface{}) ([]byte, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanonicalizationFail, err)
	}
	return out, nil
}

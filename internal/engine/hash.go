package engine

import (
	"crypto/sha256"
	"encoding/hex"
)

// cell values are joined with the unit separator so that adjacent cells
// cannot collide ("ab","c" vs "a","bc").
const hashDelim = "\x1f"

// RowHash returns the deterministic content fingerprint of a row's ordered
// cell values.
func RowHash(cells []string) string {
	h := sha256.New()
	for i, c := range cells {
		if i > 0 {
			h.Write([]byte(hashDelim))
		}
		h.Write([]byte(c))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DatasetChecksum folds the ordered row hashes into a single fingerprint of
// the whole dataset, used to short-circuit no-op cycles.
func DatasetChecksum(rowHashes []string) string {
	h := sha256.New()
	for _, rh := range rowHashes {
		h.Write([]byte(rh))
	}
	return hex.EncodeToString(h.Sum(nil))
}

package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns the BLAKE2b-256 hex digest of the given bytes.
// Manifests record this digest so a run can be traced back to the exact
// input content it processed.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintRecords canonicalizes records as CSV before hashing, so
// sources without a byte representation (spreadsheet ranges, in-memory
// tables) fingerprint consistently.
func FingerprintRecords(records [][]string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return ""
		}
	}
	w.Flush()
	return Fingerprint(buf.Bytes())
}

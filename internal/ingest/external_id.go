package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// externalID derives the stable dedup identity for one event: a dataset tag
// plus the first 12 hex chars of the md5 of the pipe-joined key fields.
// Identical key fields must always yield the identical ID across runs, so
// callers pass already-normalized values.
func externalID(prefix string, keyParts ...string) string {
	sum := md5.Sum([]byte(strings.Join(keyParts, "|")))
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(sum[:])[:12])
}

package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRecord = "redpath/record/v1"
	DomainURI    = "redpath/uri/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes a content-addressed hash of a record.
// Stable across processes given the same record contents.
func Hash(r Record) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("record hash: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// URIKey computes a stable key for a resource URI, used by the response
// cache as its primary key.
func URIKey(uri string) string {
	return hashWithDomain(DomainURI, []byte(uri))
}

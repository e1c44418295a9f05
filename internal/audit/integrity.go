// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// HashAlgorithm is the only algorithm this verifier currently speaks.
const HashAlgorithm = "sha256"

// fieldDelimiter separates canonicalized fields before hashing. It is
// reserved and must never appear unescaped inside a field value; field
// values are not user-controlled delimiters themselves (the canonical JSON
// encoding of Details is itself delimiter-free at this level since it is a
// single opaque field in the list).
const fieldDelimiter = "\x1f"

// Verifier computes and checks AuditEvent integrity hashes.
type Verifier struct {
	id string
}

// NewVerifier creates a Verifier identified by id (recorded on every
// IntegrityVerification it produces).
func NewVerifier(id string) *Verifier {
	if id == "" {
		id = "default"
	}
	return &Verifier{id: id}
}

// ComputeHash canonicalizes the hash-covered fields of event and returns the
// lower-hex SHA-256 digest.
func (v *Verifier) ComputeHash(event Event) (string, error) {
	canon, err := canonicalize(event)
	if err != nil {
		return "", fmt.Errorf("audit: canonicalize event: %w", err)
	}
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes event's hash and compares it against the stored
// Hash/HashAlgorithm. It always returns an IntegrityVerification record,
// even on a hashing error (status FAILURE), so the caller has something to
// persist per the append-only verification log.
func (v *Verifier) Verify(event Event, now time.Time) (IntegrityVerification, error) {
	rec := IntegrityVerification{
		EventRef:       event.Hash,
		AuditLogID:     event.ID,
		EventTimestamp: event.Timestamp,
		VerifiedAt:     now,
		ExpectedHash:   event.Hash,
		VerifierID:     v.id,
	}

	if event.Hash == "" {
		rec.Status = VerificationWarning
		return rec, nil
	}

	computed, err := v.ComputeHash(event)
	if err != nil {
		rec.Status = VerificationFailure
		return rec, err
	}
	rec.ComputedHash = computed

	if computed == event.Hash {
		rec.Status = VerificationSuccess
	} else {
		rec.Status = VerificationFailure
		rec.Details = map[string]any{"mismatch": "computed hash does not match stored hash"}
	}
	return rec, nil
}

// canonicalize builds the stable, ordered, delimiter-joined representation
// of event's hash-covered fields. Determinism requirements:
//   - field order is fixed (listed below),
//   - details is encoded with recursively sorted object keys,
//   - strings are normalized to UTF-8 NFC,
//   - numbers use Go's shortest round-trippable form (strconv.FormatFloat -1).
func canonicalize(event Event) (string, error) {
	detailsJSON, err := canonicalDetails(event.Details)
	if err != nil {
		return "", err
	}

	fields := []string{
		formatTime(event.Timestamp),
		norm.NFC.String(event.TenantID),
		norm.NFC.String(event.PrincipalID),
		norm.NFC.String(event.Action),
		norm.NFC.String(event.TargetType),
		norm.NFC.String(event.TargetID),
		string(event.Status),
		string(event.DataClassification),
		norm.NFC.String(event.RetentionPolicy),
		norm.NFC.String(event.CorrelationID),
		norm.NFC.String(event.EventVersion),
		detailsJSON,
	}
	return strings.Join(fields, fieldDelimiter), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// canonicalDetails renders Details as a deterministic JSON object: keys
// sorted lexicographically at every nesting level, numbers in shortest
// round-trippable form. null vs. absent is preserved because a missing key
// is simply never emitted, whereas an explicit nil value is emitted as
// `null`.
func canonicalDetails(d Details) (string, error) {
	if d == nil {
		return "{}", nil
	}
	var b strings.Builder
	if err := writeCanonicalValue(&b, d); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeCanonicalValue(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		writeCanonicalString(b, val)
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case float32:
		b.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 32))
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case map[string]any:
		return writeCanonicalObject(b, val)
	case Details:
		return writeCanonicalObject(b, val)
	case []any:
		b.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonicalValue(b, elem); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		return fmt.Errorf("audit: unsupported details value type %T", v)
	}
	return nil
}

func writeCanonicalObject(b *strings.Builder, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeCanonicalString(b, norm.NFC.String(k))
		b.WriteByte(':')
		if err := writeCanonicalValue(b, m[k]); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

func writeCanonicalString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range norm.NFC.String(s) {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

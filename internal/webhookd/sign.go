package webhookd

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SignatureHeader carries the HMAC of the canonical payload.
const SignatureHeader = "X-Athens-Signature"

// CanonicalJSON renders v with sorted keys, no insignificant whitespace and
// no HTML escaping, so both sides of a webhook compute the same bytes.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		buf.WriteByte('{')
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		return writeScalar(buf, v)
	}
}

func writeScalar(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode appends a newline; canonical form has none.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Sign produces the header value: sha256=<hex(hmac(secret, body))>.
func Sign(secret string, canonicalBody []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonicalBody)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// DedupeKey collapses deliveries of the same event for the same permit to
// the same endpoint within one hour.
func DedupeKey(event, permitID string, at time.Time, endpointID string) string {
	bucket := at.UTC().Format("2006010215")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", event, permitID, bucket, endpointID)))
	return hex.EncodeToString(sum[:])
}

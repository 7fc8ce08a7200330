package location

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/covidsafe/services-backend/internal/models"
)

// NoLocality is the sentinel token for users without a recent location.
// It is excluded from contact-trace matching.
const NoLocality = ""

// ErrUnknownPrivacyLevel is returned for a privacy level outside the enum.
var ErrUnknownPrivacyLevel = errors.New("unknown privacy level")

// Hasher derives opaque locality tokens from raw location strings.
// The transform is keyed (HMAC-SHA256) with process-wide secret salt, so
// tokens are deterministic per deployment but cannot be inverted or
// recomputed outside it. The raw string is discarded by callers after
// hashing; nothing here retains it.
type Hasher struct {
	salt []byte
}

func NewHasher(salt string) *Hasher {
	return &Hasher{salt: []byte(salt)}
}

// Hash returns the locality token for raw at the given privacy level.
//
//	standard: full normalized address
//	high:     street-level segment dropped
//	maximum:  coarsest segment only (suburb/city bucket)
//
// Collisions between nearby addresses at high/maximum precision are the
// privacy mechanism: many addresses share one token.
func (h *Hasher) Hash(raw, privacyLevel string) (string, error) {
	norm := Normalize(raw)
	if norm == "" {
		return NoLocality, nil
	}

	segments := strings.Split(norm, ",")
	for i, s := range segments {
		segments[i] = strings.TrimSpace(s)
	}

	var material string
	switch privacyLevel {
	case models.PrivacyStandard:
		material = strings.Join(segments, ",")
	case models.PrivacyHigh:
		if len(segments) > 1 {
			segments = segments[1:]
		}
		material = strings.Join(segments, ",")
	case models.PrivacyMaximum:
		material = segments[len(segments)-1]
	default:
		return "", ErrUnknownPrivacyLevel
	}

	mac := hmac.New(sha256.New, h.salt)
	mac.Write([]byte(material))
	return hex.EncodeToString(mac.Sum(nil)[:16]), nil
}

// Normalize case-folds and collapses internal whitespace so that
// cosmetically different spellings of one address hash identically.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

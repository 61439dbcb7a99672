// Package identity derives the canonical permit key used for deduplication.
package identity

import (
	"fmt"
	"strings"

	"permit_ingest_backend/internal/permits/domain"
)

// Raw payload fields consulted before the normalized attributes.
const (
	rawPermitID     = "permit_id"
	rawPermitNumber = "permit_number"
)

// Resolve returns the permit key for np. The first non-empty candidate wins:
// raw permit_id, then permit number, then source_record_id.
func Resolve(np domain.NormalizedPermit) (string, error) {
	candidates := []string{
		rawString(np.RawPayload, rawPermitID),
		np.PermitNo.Value,
		rawString(np.RawPayload, rawPermitNumber),
		np.SourceRecordID,
	}
	for _, candidate := range candidates {
		if key := NormalizeKey(candidate); key != "" {
			return key, nil
		}
	}
	return "", domain.NewResolutionError(np.Source, -1)
}

// NormalizeKey trims, collapses inner whitespace and upper-cases a key.
func NormalizeKey(value string) string {
	return strings.ToUpper(strings.Join(strings.Fields(value), " "))
}

func rawString(raw domain.RawPayload, key string) string {
	if raw == nil {
		return ""
	}
	switch v := raw[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

package sources

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/platform/sanitize"
)

// Feeds publish floating local times. All configured sources are in Texas.
var sourceZone = loadZone("America/Chicago")

func loadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
}

var floatingLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006 3:04:05 PM",
	"01/02/2006 3:04 PM",
	"1/2/2006 15:04",
	"1/2/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// parseTimeFlexible accepts the timestamp shapes the feeds are known to use.
func parseTimeFlexible(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if isDigits(s) && len(s) >= 10 {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			if len(s) >= 13 {
				return time.UnixMilli(n).UTC(), true
			}
			return time.Unix(n, 0).UTC(), true
		}
	}
	for _, layout := range floatingLayouts {
		if t, err := time.ParseInLocation(layout, s, sourceZone); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseMoney reads "$1,250.00", "1250" or "1,250".
func parseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// scalarText renders a scalar raw value as text. Objects and arrays are not scalars.
func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return sanitize.Text(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// pickStr returns the first candidate with a non-empty value. When candidate
// keys exist but all are empty the field is present and empty; when none
// exist it is absent.
func pickStr(row domain.RawPayload, keys ...string) domain.Field[string] {
	seen := false
	for _, k := range keys {
		v, ok := row[k]
		if !ok {
			continue
		}
		s, ok := scalarText(v)
		if !ok {
			continue
		}
		seen = true
		if s != "" {
			return domain.Some(s)
		}
	}
	if seen {
		return domain.Empty[string]()
	}
	return domain.Absent[string]()
}

// pickFloat is pickStr followed by parseMoney. A value that does not parse
// is treated as absent so the stored value survives.
func pickFloat(row domain.RawPayload, keys ...string) domain.Field[float64] {
	s := pickStr(row, keys...)
	if !s.Present {
		return domain.Absent[float64]()
	}
	if s.Value == "" {
		return domain.Empty[float64]()
	}
	f, ok := parseMoney(s.Value)
	if !ok {
		return domain.Absent[float64]()
	}
	return domain.Some(f)
}

// pickTime is pickStr followed by parseTimeFlexible, with the same coercion
// rules as pickFloat. Times are cut to the microsecond the store keeps.
func pickTime(row domain.RawPayload, keys ...string) domain.Field[time.Time] {
	s := pickStr(row, keys...)
	if !s.Present {
		return domain.Absent[time.Time]()
	}
	if s.Value == "" {
		return domain.Empty[time.Time]()
	}
	t, ok := parseTimeFlexible(s.Value)
	if !ok {
		return domain.Absent[time.Time]()
	}
	return domain.Some(t.Truncate(time.Microsecond))
}

// pickCoordinates reads latitude and longitude from flat columns or from a
// nested location object ({"latitude": .., "longitude": ..} or GeoJSON Point).
func pickCoordinates(row domain.RawPayload, latKeys, lonKeys, locationKeys []string) (domain.Field[float64], domain.Field[float64]) {
	lat := pickFloat(row, latKeys...)
	lon := pickFloat(row, lonKeys...)
	if lat.IsSet() && lon.IsSet() {
		return lat, lon
	}
	for _, k := range locationKeys {
		loc, ok := row[k].(map[string]any)
		if !ok {
			continue
		}
		if coords, ok := loc["coordinates"].([]any); ok && len(coords) == 2 {
			lonText, _ := scalarText(coords[0])
			latText, _ := scalarText(coords[1])
			if la, ok := parseMoney(latText); ok {
				if lo, ok := parseMoney(lonText); ok {
					return domain.Some(la), domain.Some(lo)
				}
			}
		}
		nestedLat := pickFloat(domain.RawPayload(loc), "latitude", "lat")
		nestedLon := pickFloat(domain.RawPayload(loc), "longitude", "lon", "lng")
		if nestedLat.IsSet() && nestedLon.IsSet() {
			return nestedLat, nestedLon
		}
	}
	return lat, lon
}

// Package input turns external request bodies and record files into
// domain.TrafficRecord values.
//
// Field rules for a request object:
//   - ip: string as-is; absent or null becomes "unknown"; any other JSON
//     value is kept as its compact JSON text
//   - payload: same as ip, but absent or null becomes ""
//   - size: integers, floats (truncated toward zero), booleans (1/0) and
//     numeric strings are accepted; anything else, and negatives, become 0;
//     values too large for int saturate
package input

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

var (
	ErrInvalidJSON  = errors.New("invalid JSON format")
	ErrBodyTooLarge = errors.New("request body too large")
)

const (
	fieldIP      = "ip"
	fieldPayload = "payload"
	fieldSize    = "size"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var sizeStringPattern = regexp.MustCompile(`^[+-]?[0-9]+(?:_[0-9]+)*$`)

// DecodeRecord parses one JSON request object. A leading UTF-8 byte order
// mark is skipped. Any body that is not valid UTF-8 or not a JSON object
// returns ErrInvalidJSON.
func DecodeRecord(data []byte) (domain.TrafficRecord, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return domain.TrafficRecord{}, ErrInvalidJSON
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return domain.TrafficRecord{}, ErrInvalidJSON
	}
	if fields == nil {
		return domain.TrafficRecord{}, ErrInvalidJSON
	}

	source := textField(fields, fieldIP, domain.UnknownSource)
	payload := textField(fields, fieldPayload, "")
	size := coerceSize(fields[fieldSize])

	return domain.NewTrafficRecord(source, payload, size), nil
}

func textField(fields map[string]json.RawMessage, key, def string) string {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return def
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func coerceSize(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0
	}

	switch x := v.(type) {
	case json.Number:
		return numberToSize(x.String())
	case string:
		return stringToSize(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func numberToSize(s string) int {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return clampSize(n)
	}

	if !strings.ContainsAny(s, ".eE") {
		// integer literal outside the int64 range
		return saturate(strings.HasPrefix(s, "-"))
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && math.IsInf(f, 1) {
			return math.MaxInt
		}
		return 0
	}
	return floatToSize(f)
}

func stringToSize(s string) int {
	s = strings.TrimSpace(s)
	if !sizeStringPattern.MatchString(s) {
		return 0
	}
	s = strings.ReplaceAll(s, "_", "")

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return saturate(strings.HasPrefix(s, "-"))
	}
	return clampSize(n)
}

func floatToSize(f float64) int {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(f)
}

func clampSize(n int64) int {
	if n < 0 {
		return 0
	}
	if uint64(n) > uint64(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}

func saturate(negative bool) int {
	if negative {
		return 0
	}
	return math.MaxInt
}

package telemetry

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// FieldCount is the number of numeric values every record carries.
const FieldCount = 6

// Field describes one positional slot of the wire format.
type Field struct {
	Label  string // decorative, must not contain digits
	Series string // series name used by sinks
}

// Fields lists the wire slots in order. Decoding is purely positional: the
// labels are only written for humans reading the stream, and swapping two
// entries here silently swaps the decoded values on the other side.
var Fields = [FieldCount]Field{
	{Label: "CPU_Usage", Series: "cpu"},
	{Label: "Uptime", Series: "uptime"},
	{Label: "Temperature", Series: "temperature"},
	{Label: "ClockArm", Series: "clock"},
	{Label: "RecvBitrate", Series: "bitrate_recv"},
	{Label: "SendBitrate", Series: "bitrate_send"},
}

var (
	// ErrMalformedRecord is returned when a payload holds fewer than
	// FieldCount decimal tokens.
	ErrMalformedRecord = errors.New("malformed telemetry record")

	// ErrNonFinite is returned when a value cannot be written as a
	// decimal token (NaN or infinity).
	ErrNonFinite = errors.New("non-finite telemetry value")
)

// decimalToken matches an optionally signed integer or fraction: "12",
// "12.5", "-3.2", ".5". Exponents are not part of the language.
var decimalToken = regexp.MustCompile(`[-+]?(?:\d*\.\d+|\d+)`)

// DecimalTokens returns every decimal-shaped substring of s, left to right.
func DecimalTokens(s string) []string {
	return decimalToken.FindAllString(s, -1)
}

// FirstDecimalToken returns the first decimal-shaped substring of s.
func FirstDecimalToken(s string) (string, bool) {
	tok := decimalToken.FindString(s)
	return tok, tok != ""
}

// Encode batches r into a single line of "Label: value" groups.
func Encode(r Record) (string, error) {
	values := r.Values()
	var text [FieldCount]string
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("%w: %s = %v", ErrNonFinite, Fields[i].Label, v)
		}
		text[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return join(text), nil
}

// EncodeFields batches readings that are already decimal text, writing each
// value verbatim. Bitrates are given as (recv, send).
func EncodeFields(cpu, uptime, temperature, clockArm string, bitrates [2]string) string {
	return join([FieldCount]string{cpu, uptime, temperature, clockArm, bitrates[0], bitrates[1]})
}

func join(values [FieldCount]string) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(Fields[i].Label)
		b.WriteString(": ")
		b.WriteString(v)
	}
	return b.String()
}

// Decode extracts a record from payload. The first FieldCount decimal
// tokens are assigned to the record fields in wire order; anything else in
// the payload, labels included, is ignored.
func Decode(payload string) (Record, error) {
	tokens := decimalToken.FindAllString(payload, FieldCount)
	if len(tokens) < FieldCount {
		return Record{}, fmt.Errorf("%w: found %d of %d numeric values", ErrMalformedRecord, len(tokens), FieldCount)
	}

	var values [FieldCount]float64
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %s %q: %v", ErrMalformedRecord, Fields[i].Label, tok, err)
		}
		values[i] = v
	}
	return recordFromValues(values), nil
}

package protocol

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ironsheep/smartfilter/internal/filter"
)

// MaxRequestSize is the size of the receive buffer used for the single read
// that makes up a request.
const MaxRequestSize = 4069

// FieldSeparator separates the request fields.
const FieldSeparator = ","

// ErrMalformedRequest is returned when a payload does not contain exactly
// three fields.
var ErrMalformedRequest = errors.New("malformed request")

// Request is a parsed transformation request.
type Request struct {
	// InputPath is the image to read.
	InputPath string

	// OutputPath is where the transformed image is written. Its extension
	// selects the output format.
	OutputPath string

	// VariantID is the decoded variant field. It is kept as sent so logs show
	// what the client asked for; use Variant to resolve it.
	VariantID int
}

// Variant resolves the request's variant identifier. Unknown identifiers
// resolve to Grayscale.
func (r Request) Variant() filter.Variant {
	return filter.Resolve(r.VariantID)
}

// String renders the request in wire form.
func (r Request) String() string {
	return fmt.Sprintf("%s,%s,%d", r.InputPath, r.OutputPath, r.VariantID)
}

// ParseRequest turns the bytes of one read into a Request.
//
// Returns ErrMalformedRequest (wrapped with the field count) unless the
// payload splits into exactly three fields.
func ParseRequest(payload []byte) (Request, error) {
	fields := splitFields(string(payload))
	if len(fields) != 3 {
		return Request{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedRequest, len(fields))
	}

	return Request{
		InputPath:  fields[0],
		OutputPath: fields[1],
		VariantID:  Atoi(fields[2]),
	}, nil
}

// splitFields splits on the separator, dropping the single empty field that a
// trailing separator produces. An empty payload has no fields.
func splitFields(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.Split(s, FieldSeparator)
	if len(fields) > 1 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

// Atoi decodes an integer the way C atoi does on a 64-bit host.
//
// Leading whitespace is skipped, an optional '+' or '-' is accepted, and
// decimal digits are consumed until the first non-digit. Input with no leading
// digits yields 0. The magnitude saturates at the int64 range and the result is
// then truncated to 32 bits, matching the (int) conversion of strtol's result.
func Atoi(s string) int {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}

	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}

	var n uint64
	overflow := false
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		d := uint64(s[i] - '0')
		if n > (math.MaxUint64-d)/10 {
			overflow = true
			continue
		}
		n = n*10 + d
	}

	var v int64
	switch {
	case neg && (overflow || n > 1<<63):
		v = math.MinInt64
	case neg:
		v = -int64(n)
	case overflow || n > math.MaxInt64:
		v = math.MaxInt64
	default:
		v = int64(n)
	}

	return int(int32(v))
}

// isSpace matches the C locale isspace set.
func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Package devicekey validates the shape of device identity keys.
//
// A device key is both the identity of a monitored device and the capability
// to read its ledger; there is no separate account layer. Validation is
// shape-only: 18 hyphen-joined segments of exactly 8 hex characters, or a
// configured override key accepted unconditionally for admin and support
// access.
package devicekey

import "strings"

// SegmentCount is the number of hyphen-joined segments a device key carries.
const SegmentCount = 18

// SegmentLen is the length of each segment in hex characters.
const SegmentLen = 8

// ValidationCode identifies why a key was rejected.
type ValidationCode string

const (
	// CodeWrongSegmentCount: the key does not split into exactly 18 segments.
	CodeWrongSegmentCount ValidationCode = "WRONG_SEGMENT_COUNT"
	// CodeBadSegmentFormat: a segment is not exactly 8 hex characters.
	CodeBadSegmentFormat ValidationCode = "BAD_SEGMENT_FORMAT"
)

// ValidationError reports the first shape violation found in a key.
type ValidationError struct {
	Code ValidationCode
}

func (e *ValidationError) Error() string {
	return "device key: " + string(e.Code)
}

// Validator checks device key shape. It is stateless apart from the
// configured override key and safe for concurrent use.
type Validator struct {
	override string
}

// NewValidator creates a Validator. override is the configured bypass key;
// empty disables the override entirely.
func NewValidator(override string) *Validator {
	return &Validator{override: override}
}

// Validate returns nil for a well-formed key (or the override key), or a
// *ValidationError naming the first violation.
func (v *Validator) Validate(key string) error {
	if v.override != "" && key == v.override {
		return nil
	}

	segments := strings.Split(key, "-")
	if len(segments) != SegmentCount {
		return &ValidationError{Code: CodeWrongSegmentCount}
	}
	for _, seg := range segments {
		if len(seg) != SegmentLen || !isHex(seg) {
			return &ValidationError{Code: CodeBadSegmentFormat}
		}
	}
	return nil
}

// IsValid is a boolean convenience wrapper around Validate.
func (v *Validator) IsValid(key string) bool {
	return v.Validate(key) == nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

package domain

import (
	"crypto/sha256"
	"fmt"
)

// MaskType is how a rule's key value is shown in logs, audit entries and
// tool responses.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid returns true if the MaskType is a recognised masking strategy
// (including the zero value "", which means "no mask").
func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// Apply returns value as it may be displayed under mask m. Masked values
// become strings, except MaskNull which yields nil.
func (m MaskType) Apply(value any) any {
	if value == nil {
		return nil
	}

	switch m {
	case MaskRedact:
		return "***"
	case MaskHash:
		h := sha256.Sum256([]byte(fmt.Sprint(value)))
		return fmt.Sprintf("%x", h)
	case MaskPartial:
		return lastFour(fmt.Sprint(value))
	case MaskNull:
		return nil
	default:
		return value
	}
}

// lastFour keeps the trailing four runes visible.
func lastFour(s string) string {
	runes := []rune(s)
	if len(runes) <= 4 {
		return "***" + s
	}
	for i := 0; i < len(runes)-4; i++ {
		runes[i] = '*'
	}
	return string(runes)
}

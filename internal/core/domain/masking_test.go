package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskType_Valid(t *testing.T) {
	t.Parallel()
	for _, mt := range []MaskType{"", MaskRedact, MaskHash, MaskPartial, MaskNull} {
		assert.True(t, mt.Valid(), "expected %q to be valid", mt)
	}
	for _, mt := range []MaskType{"encrypt", "REDACT", "sha256"} {
		assert.False(t, mt.Valid(), "expected %q to be invalid", mt)
	}
}

func TestMaskType_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mask  MaskType
		value any
		want  any
	}{
		{"no mask passes through", "", 42, 42},
		{"redact string", MaskRedact, "acct-001", "***"},
		{"redact int", MaskRedact, 12345, "***"},
		{"partial long", MaskPartial, "1234567890", "******7890"},
		{"partial short", MaskPartial, "abc", "***abc"},
		{"partial unicode", MaskPartial, "ñandú-0042", "******0042"},
		{"null", MaskNull, "secret", nil},
		{"nil stays nil", MaskHash, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.mask.Apply(tt.value))
		})
	}
}

func TestMaskType_Apply_Hash(t *testing.T) {
	t.Parallel()
	h, ok := MaskHash.Apply("acct-001").(string)
	assert.True(t, ok)
	assert.Len(t, h, 64)
	assert.Equal(t, h, MaskHash.Apply("acct-001"))
	assert.NotEqual(t, h, MaskHash.Apply("acct-002"))

	// int and string with the same representation hash identically.
	assert.Equal(t, MaskHash.Apply(42), MaskHash.Apply("42"))
}

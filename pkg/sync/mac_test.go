package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/assetsync/internal/utils/ptr"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare lowercase", "aabbccddeeff", "AA:BB:CC:DD:EE:FF"},
		{"dashes", "aa-bb-cc-dd-ee-ff", "AA:BB:CC:DD:EE:FF"},
		{"spaces", " 00 1a 2b 3c 4d 5e ", "00:1A:2B:3C:4D:5E"},
		{"unicode whitespace", "aa\u00a0bb\u2002cc dd\u3000ee\tff", "AA:BB:CC:DD:EE:FF"},
		{"already formatted", "AA:BB:CC:DD:EE:FF", "AA:BB:CC:DD:EE:FF"},
		{"colons pass through untouched", "aa:bb:cc:dd:ee:ff", "aa:bb:cc:dd:ee:ff"},
		{"too short", "aabbcc", "aabbcc"},
		{"not hex", "zzbbccddeeff", "zzbbccddeeff"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeMAC(ptr.String(tt.in))
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want, *got)
			}
		})
	}
}

func TestNormalizeMACNil(t *testing.T) {
	assert.Nil(t, NormalizeMAC(nil))
}

func TestNormalizeMACIdempotent(t *testing.T) {
	for _, in := range []string{"aabbccddeeff", "aa-bb-cc-dd-ee-ff", "garbage", "AA:BB:CC:DD:EE:FF"} {
		once := NormalizeMAC(ptr.String(in))
		twice := NormalizeMAC(once)
		assert.Equal(t, *once, *twice, in)
	}
}

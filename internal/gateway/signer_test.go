package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSigner_Sign(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		params   map[string]string
		expected string
	}{
		{
			name:   "golden fixture",
			secret: "s3cr3t",
			params: map[string]string{
				"timestamp": "1700000000",
				"tradeNo":   "T1",
				"amount":    "100.00",
			},
			expected: "68876fddea17e18ccfb182dad4a1dce9",
		},
		{
			name:   "keys sorted by ascending byte order",
			secret: "secret",
			params: map[string]string{
				"c": "3",
				"a": "1",
				"b": "2",
			},
			// MD5("a=1b=2c=3secret")
			expected: "f9b2f7e7a292539b527b2695bfc5362a",
		},
		{
			name:   "sign key and empty values excluded",
			secret: "secret",
			params: map[string]string{
				"a":     "1",
				"b":     "2",
				"empty": "",
				"sign":  "deadbeef",
			},
			// MD5("a=1b=2secret")
			expected: "d37cfe88ec8ff020e497f5197bf3ba1c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := NewSigner(tt.secret)

			got := signer.Sign(tt.params)
			assert.Equal(t, tt.expected, got)

			// Deterministic on repeat invocation
			assert.Equal(t, got, signer.Sign(tt.params))
		})
	}
}

func TestSigner_Verify(t *testing.T) {
	signer := NewSigner("s3cr3t")
	params := map[string]string{
		"timestamp": "1700000000",
		"tradeNo":   "T1",
		"amount":    "100.00",
	}

	assert.True(t, signer.Verify(params, "68876fddea17e18ccfb182dad4a1dce9"))
	assert.True(t, signer.Verify(params, "68876FDDEA17E18CCFB182DAD4A1DCE9"), "uppercase digests accepted")
	assert.False(t, signer.Verify(params, "0000000000000000000000000000000"))

	// The delivered sign field never participates in its own digest.
	params["sign"] = "68876fddea17e18ccfb182dad4a1dce9"
	assert.True(t, signer.Verify(params, "68876fddea17e18ccfb182dad4a1dce9"))
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"100", "100.00"},
		{"100.5", "100.50"},
		{"100.505", "100.51"},
		{"0", "0.00"},
		{"-12.3", "-12.30"},
	}

	for _, tt := range tests {
		d, err := decimal.NewFromString(tt.in)
		assert.NoError(t, err)
		assert.Equal(t, tt.expected, FormatAmount(d))
	}
}

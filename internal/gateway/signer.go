package gateway

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Signer computes the request/response signature shared with the payment
// gateway: sorted "key=value" concatenation with no separators, secret
// appended, MD5, lowercase hex. The "sign" key itself and empty values are
// excluded on both sides.
type Signer struct {
	secret string
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: secret}
}

// Sign computes the signature over params. Deterministic, no I/O.
func (s *Signer) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(s.secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the signature and compares it to the delivered one in
// constant time.
func (s *Signer) Verify(params map[string]string, given string) bool {
	expected := s.Sign(params)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(given))) == 1
}

// FormatAmount renders a monetary value in the fixed two-decimal wire format
// the gateway signs over. Any drift here breaks verification silently, so
// every amount that crosses the wire goes through this one function.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

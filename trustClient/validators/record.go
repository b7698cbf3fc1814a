package validators

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
)

// PublicKey is the opaque identity of a validator. Keys are compared byte-wise.
type PublicKey []byte

// ParsePublicKey decodes a key. Hex is tried first, with or without the 0x
// prefix; anything that is not hex is read as base58 (bitcoin alphabet).
func ParsePublicKey(s string) (PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty public key")
	}

	var (
		b   []byte
		err error
	)
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		b, err = hexutil.Decode(s)
	case isHex(s):
		b, err = hexutil.Decode("0x" + s)
	default:
		b, err = base58.Decode(s)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid public key %q: %w", s, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty public key")
	}
	return PublicKey(b), nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// MustParsePublicKey is ParsePublicKey for constants and tests.
func MustParsePublicKey(s string) PublicKey {
	k, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

func (k PublicKey) String() string {
	return hexutil.Encode(k)
}

func (k PublicKey) Compare(other PublicKey) int {
	return bytes.Compare(k, other)
}

func (k PublicKey) Equal(other PublicKey) bool {
	return bytes.Equal(k, other)
}

func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Record is a validator descriptor as reported by a source. Two records are the
// same validator when their keys are equal; the label is informational.
type Record struct {
	PublicKey PublicKey `json:"public_key" yaml:"public_key"`
	Label     string    `json:"label" yaml:"label"`
}

func (r Record) String() string {
	if r.Label == "" {
		return r.PublicKey.String()
	}
	return fmt.Sprintf("%s (%s)", r.PublicKey, r.Label)
}

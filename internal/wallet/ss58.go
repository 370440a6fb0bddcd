package wallet

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// BittensorPrefix is the SS58 network prefix used by Subtensor (generic Substrate).
const BittensorPrefix uint16 = 42

var ss58Pre = []byte("SS58PRE")

func ss58Checksum(payload []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Pre)
	h.Write(payload)
	return h.Sum(nil)[:2]
}

func encodePrefix(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	// Two-byte form: the low six bits of the prefix sit in the first byte.
	first := byte((prefix&0xfc)>>2) | 0x40
	second := byte(prefix>>8) | byte(prefix&0x03)<<6
	return []byte{first, second}
}

// EncodeSS58 encodes a 32-byte public key with prefix.
func EncodeSS58(prefix uint16, pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", fmt.Errorf("%w: public key must be 32 bytes, got %d", ErrInvalidAddress, len(pubkey))
	}
	if prefix > 16383 {
		return "", fmt.Errorf("%w: prefix %d out of range", ErrInvalidAddress, prefix)
	}
	payload := append(encodePrefix(prefix), pubkey...)
	return base58.Encode(append(payload, ss58Checksum(payload)...)), nil
}

// DecodeSS58 validates addr and returns its network prefix and public key.
func DecodeSS58(addr string) (uint16, []byte, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) == 0 {
		return 0, nil, ErrInvalidAddress
	}

	var (
		prefix    uint16
		prefixLen int
	)
	switch {
	case raw[0] < 64:
		prefix, prefixLen = uint16(raw[0]), 1
	case raw[0] < 128:
		if len(raw) < 2 {
			return 0, nil, ErrInvalidAddress
		}
		lower := (raw[0]<<2)&0xfc | raw[1]>>6
		upper := raw[1] & 0x3f
		prefix, prefixLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return 0, nil, fmt.Errorf("%w: reserved prefix byte %d", ErrInvalidAddress, raw[0])
	}

	if len(raw) != prefixLen+32+2 {
		return 0, nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(raw))
	}

	payload := raw[:prefixLen+32]
	if !bytes.Equal(ss58Checksum(payload), raw[prefixLen+32:]) {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	return prefix, raw[prefixLen : prefixLen+32], nil
}

// ValidateAddress checks addr is a well-formed SS58 address.
func ValidateAddress(addr string) error {
	_, _, err := DecodeSS58(addr)
	return err
}

// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cert

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	HashSize    = 32
	AddressSize = 20
)

var (
	ErrInvalidHash    = errors.New("invalid certificate hash")
	ErrInvalidAddress = errors.New("invalid address")
)

// Hash is the fixed-width content identifier of a certificate
type Hash [HashSize]byte

// ParseHash parses a 0x-prefixed, 64 character hex string
func ParseHash(s string) (Hash, error) {
	var ret Hash
	if err := decodeHex(s, ret[:]); err != nil {
		return Hash{}, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	return ret, nil
}

// HashFromBytes copies a raw 32 byte slice into a Hash
func HashFromBytes(b []byte) (Hash, error) {
	var ret Hash
	if len(b) != HashSize {
		return ret, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidHash,
			HashSize,
			len(b),
		)
	}
	copy(ret[:], b)
	return ret, nil
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	tmp, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = tmp
	return nil
}

// Address identifies an account (issuer, owner, caller)
type Address [AddressSize]byte

// ZeroAddress is the anonymous caller. It is never the registry owner.
var ZeroAddress = Address{}

// ParseAddress parses a 0x-prefixed, 40 character hex string
func ParseAddress(s string) (Address, error) {
	var ret Address
	if err := decodeHex(s, ret[:]); err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return ret, nil
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	tmp, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = tmp
	return nil
}

func decodeHex(s string, dst []byte) error {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return errors.New("missing 0x prefix")
	}
	s = s[2:]
	if len(s) != len(dst)*2 {
		return errors.New("wrong length")
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}

// Keccak256 returns the legacy Keccak-256 digest of the concatenated inputs
func Keccak256(data ...[]byte) Hash {
	var ret Hash
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	h.Sum(ret[:0])
	return ret
}

// ComputeHash derives the content hash of a certificate from its immutable
// fields and issuer. Variable length fields are length prefixed so that
// shifting bytes between adjacent fields changes the digest.
func ComputeHash(content Content, issuer Address) Hash {
	var buf []byte
	for _, field := range []string{
		content.Name,
		string(content.Classification),
		content.StudentID,
		content.StudentName,
	} {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(field))) // #nosec G115
		buf = append(buf, field...)
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(content.DateOfBirth)) // #nosec G115
	return Keccak256(buf, issuer[:])
}

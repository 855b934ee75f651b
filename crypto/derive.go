package crypto

import (
	"encoding/binary"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrNoViableBump is returned when every bump value yields the zero address.
var ErrNoViableBump = errors.New("crypto: no viable derivation bump")

const deriveDomain = "flashreserve/derived-address"

// DeriveAddress computes a deterministic protocol-owned address from the
// program identifier and seeds. Bumps are tried from 255 downward and the
// first non-zero result wins. The address is a hash preimage, never a public
// key hash, so no private key can sign for it.
func DeriveAddress(programID []byte, seeds ...[]byte) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr := CreateDerivedAddress(programID, uint8(bump), seeds...)
		if !addr.IsZero() {
			return addr, uint8(bump), nil
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// CreateDerivedAddress recomputes a derived address from a known bump. Every
// part is length-prefixed so distinct seed splits never share a preimage.
func CreateDerivedAddress(programID []byte, bump uint8, seeds ...[]byte) Address {
	parts := make([][]byte, 0, len(seeds)+3)
	parts = append(parts, []byte(deriveDomain), programID)
	parts = append(parts, seeds...)
	parts = append(parts, []byte{bump})
	buf := make([]byte, 0, 64)
	for _, part := range parts {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(part)))
		buf = append(buf, part...)
	}
	digest := ethcrypto.Keccak256(buf)
	return NewAddress(ProgramPrefix, digest[len(digest)-AddressLength:])
}

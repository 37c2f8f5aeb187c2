package crypto

import "golang.org/x/crypto/sha3"

// Keccak256 computes the Keccak-256 digest of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash computes Keccak256 and returns it as a 32-byte array.
func Keccak256Hash(data ...[]byte) [32]byte {
	var h [32]byte
	copy(h[:], Keccak256(data...))
	return h
}

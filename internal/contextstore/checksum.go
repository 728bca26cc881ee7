package contextstore

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// checksumKey is the BLAKE3 keyed-hash domain key for context payloads.
// The bytes are the ASCII domain name zero-padded to 32 bytes so the
// key stays readable in hex dumps.
var checksumKey = [32]byte{
	's', 'y', 'n', 'c', 'm', 'e', 's', 'h', '.', 'c', 'o', 'n', 't', 'e', 'x', 't',
	'.', 'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0, 0, 0, 0, 0,
}

// Checksum computes the deterministic content fingerprint of a context
// payload. Identical data always yields an identical checksum; the
// store uses equality of checksums to decide whether a mutation
// actually changed anything.
func Checksum(data []byte) string {
	hasher, err := blake3.NewKeyed(checksumKey[:])
	if err != nil {
		// NewKeyed only fails on a wrong key length; the key is a
		// compile-time constant of the right size.
		panic("contextstore: checksum hasher initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

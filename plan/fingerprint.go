package plan

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// fingerprint returns a content hash of a node's (kind, inputs, attrs)
// shape, used to bucket candidate duplicates before the store falls
// back to a full Node.Equals check (G4). blake2b gives a wide,
// collision-resistant digest cheaply, the same content-addressing
// pattern the teacher uses elsewhere for on-disk artifacts.
func fingerprint(n Node) [32]byte {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%d|", n.Kind())
	for i := 0; i < n.NumInputs(); i++ {
		fmt.Fprintf(h, "%d,", n.Input(i))
	}
	h.Write([]byte("|"))
	h.Write([]byte(n.Describe()))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

package passcode

import (
	"fmt"
	"math/rand/v2"
)

// Generator produces a new passcode.
type Generator func() string

// RandomCode returns a uniformly random 4-digit decimal code, zero padded.
func RandomCode() string {
	return fmt.Sprintf("%04d", rand.IntN(10000))
}

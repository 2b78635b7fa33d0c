package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const (
	slugAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	customerAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// CustomerIDLength is the length of generated customer login ids.
	CustomerIDLength = 6
)

// NewSlug returns a routable schedule slug: 8 random [a-z0-9] characters, a dash
// and the base36 unix-millisecond timestamp of now.
func NewSlug(now time.Time) string {
	return randomString(slugAlphabet, 8) + "-" + strconv.FormatInt(now.UnixMilli(), 36)
}

// NewCustomerID returns a short opaque alphanumeric customer id.
func NewCustomerID() string {
	return randomString(customerAlphabet, CustomerIDLength)
}

func randomString(alphabet string, n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}

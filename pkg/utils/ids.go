package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateID returns a random UUID string
func GenerateID() string {
	return uuid.NewString()
}

// GeneratePrefixedID returns "<prefix>_<uuid>", used for event record ids
func GeneratePrefixedID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// GeneratePackID returns a consumer-facing pack id of the form
// PACK-<unix millis>-<9 base36 chars>
func GeneratePackID(now time.Time) (string, error) {
	suffix := make([]byte, 9)
	limit := big.NewInt(int64(len(base36Alphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		suffix[i] = base36Alphabet[n.Int64()]
	}
	return fmt.Sprintf("PACK-%d-%s", now.UnixMilli(), string(suffix)), nil
}

package session

import (
	"strings"

	"github.com/google/uuid"
)

// TokenLength - длина токена сессии в hex-символах (48 бит)
const TokenLength = 12

// NewToken returns a random lower-case hex session token of TokenLength
// characters. The first 12 hex digits of a version 4 UUID are all random.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:TokenLength]
}

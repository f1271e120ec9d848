package keys

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/keymint-app/keymint/internal/models"
)

// keyStringCharset is the alphabet for generated key suffixes. Ambiguous
// characters are kept; clients paste keys, they do not type them.
const keyStringCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// keySuffixLength is the fixed length of the random key suffix.
const keySuffixLength = 16

// gamePrefix returns the key string prefix for a game.
func gamePrefix(game models.Game) string {
	switch game {
	case models.GamePUBGMobile:
		return "PUBG"
	case models.GameLIOS:
		return "LIOS"
	case models.GameFreeFire:
		return "FF"
	default:
		return "KEY"
	}
}

// newKeyString generates a key string: game prefix, dash, random suffix.
func newKeyString(game models.Game) (string, error) {
	buf := make([]byte, keySuffixLength)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("keys: read random: %w", errRead)
	}
	var sb strings.Builder
	sb.WriteString(gamePrefix(game))
	sb.WriteByte('-')
	for _, b := range buf {
		sb.WriteByte(keyStringCharset[int(b)%len(keyStringCharset)])
	}
	return sb.String(), nil
}

package service

import (
	"crypto/rand"
	"io"

	"github.com/instaphotobooth/booth-server/internal/config"
)

// generateAccessCode creates a random human-enterable code from an
// alphabet that omits glyphs that read ambiguously on a printed card.
func generateAccessCode() (string, error) {
	buffer := make([]byte, config.CodeLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}

	for i := 0; i < config.CodeLength; i++ {
		buffer[i] = config.CodeAlphabet[int(buffer[i])%len(config.CodeAlphabet)]
	}
	return string(buffer), nil
}

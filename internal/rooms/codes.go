package rooms

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Alphabet excludes ambiguous characters: 0, O, 1, I, L
const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 5

func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	size := big.NewInt(int64(len(alphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}

// FreeCode returns a generated code no room in s uses yet. A room is only created
// on first join, so two callers can still race for the same code.
func FreeCode(ctx context.Context, s Store) (string, error) {
	for range 10 {
		code, err := GenerateCode()
		if err != nil {
			return "", fmt.Errorf("generating room code: %w", err)
		}
		_, err = s.Get(ctx, code)
		switch {
		case errors.Is(err, ErrNotFound):
			return code, nil
		case err != nil:
			return "", fmt.Errorf("checking room code: %w", err)
		}
	}
	return "", fmt.Errorf("failed to generate unique room code after 10 attempts")
}

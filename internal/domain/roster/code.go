package roster

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Sign-in code parameters.
const (
	CodeLength   = 4
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeTries = 10_000
)

// ErrCodeSpaceExhausted is returned when no free code could be drawn.
var ErrCodeSpaceExhausted = errors.New("no free sign-in code left")

// CodeSource draws random codes.
type CodeSource func() (string, error)

// RandomCode draws CodeLength characters from A-Z0-9 using crypto/rand.
func RandomCode() (string, error) {
	buf := make([]byte, CodeLength)
	n := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("draw code: %w", err)
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// UniqueCode draws codes from src until one is not in used, and records it.
func UniqueCode(src CodeSource, used Registry) (string, error) {
	if src == nil {
		src = RandomCode
	}
	for i := 0; i < maxCodeTries; i++ {
		code, err := src()
		if err != nil {
			return "", err
		}
		if !used.SeenAndRecord(code) {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

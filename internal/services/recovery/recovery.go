// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// CodeLength is the length of each backup code.
	CodeLength = 10
	// CodeCount is the default number of backup codes per batch.
	CodeCount = 10
)

// alphabet for backup codes (base 36, lowercase).
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Service generates backup codes.
type Service struct{}

// NewService creates a new recovery service.
func NewService() *Service {
	return &Service{}
}

// GenerateCodes generates count plaintext backup codes. A non-positive count
// yields CodeCount codes. Codes are unique within a batch.
func (s *Service) GenerateCodes(count int) ([]string, error) {
	if count <= 0 {
		count = CodeCount
	}

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)

	for len(codes) < count {
		code, err := generateCode(CodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	return codes, nil
}

// NormalizeCode strips whitespace and dashes and converts to lowercase for comparison.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, "-", "")
	return strings.ToLower(code)
}

// generateCode draws length characters uniformly from alphabet.
func generateCode(length int) (string, error) {
	base := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)

	for i := range buf {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}

	return string(buf), nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet holds the symbols short codes and aliases are made of.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	DefaultCodeLength  = 7
	DefaultMaxAttempts = 16
	MaxCodeLength      = 20
)

// reservedAliases are path segments owned by the HTTP layer.
var reservedAliases = []string{"api", "status", "healthz", "assets", "img", "docs", "swagger"}

// ExistsFunc reports whether a short code is already in use.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// CodeGenerator produces random fixed-length short codes.
type CodeGenerator struct {
	length      int
	maxAttempts int
}

// NewCodeGenerator creates a generator. Non-positive values fall back to the defaults.
func NewCodeGenerator(length, maxAttempts int) *CodeGenerator {
	if length <= 0 || length > MaxCodeLength {
		length = DefaultCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &CodeGenerator{
		length:      length,
		maxAttempts: maxAttempts,
	}
}

// Generate draws candidates until exists reports one as unused. It gives up with
// ErrGenerationExhausted after the configured number of attempts.
func (g *CodeGenerator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	const op = "service.CodeGenerator.Generate"

	for i := 0; i < g.maxAttempts; i++ {
		code, err := gonanoid.Generate(Alphabet, g.length)
		if err != nil {
			return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check short code: %w", op, err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, ErrGenerationExhausted)
}

// ValidateAlias checks a caller-chosen alias. The returned error is an *InvalidAliasError.
func ValidateAlias(alias string) error {
	switch {
	case alias == "":
		return &InvalidAliasError{Reason: "alias must not be empty"}
	case !isCode(alias):
		return &InvalidAliasError{Reason: "alias may only contain letters and digits"}
	case len(alias) > MaxCodeLength:
		return &InvalidAliasError{Reason: fmt.Sprintf("alias must be at most %d characters", MaxCodeLength)}
	case isReserved(alias):
		return &InvalidAliasError{Reason: fmt.Sprintf("alias %q is reserved", alias)}
	}

	return nil
}

func isCode(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune(Alphabet, c) {
			return false
		}
	}
	return true
}

func isReserved(alias string) bool {
	for _, r := range reservedAliases {
		if strings.EqualFold(alias, r) {
			return true
		}
	}
	return false
}

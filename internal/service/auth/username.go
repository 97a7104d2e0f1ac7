package auth

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/nkiryanov/authgate/internal/repository"
)

// NormalizeEmail lowercases and trims the email. Applied before every store
// write and lookup so "John@Mail.com" and "john@mail.com" are one account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// formatName trims the name, collapses repeated spaces and title-cases
// every word: "  john   ronald doe " -> "John Ronald Doe"
func formatName(name string) string {
	words := strings.Fields(name)

	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}

	return strings.Join(words, " ")
}

// pointSlug lowercases the name and joins its words with dots, dropping
// everything that is not a letter or a digit: "John Doe" -> "john.doe"
func pointSlug(name string) string {
	var parts []string

	for _, word := range strings.Fields(strings.ToLower(name)) {
		var sb strings.Builder
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				sb.WriteRune(r)
			}
		}
		if sb.Len() > 0 {
			parts = append(parts, sb.String())
		}
	}

	return strings.Join(parts, ".")
}

// generateUsername derives a unique username from the formatted name.
// The first "John Doe" gets "john.doe", the next ones "john.doe1",
// "john.doe2" and so on.
func generateUsername(ctx context.Context, repo repository.UserRepo, name string) (string, error) {
	slug := pointSlug(name)

	count, err := repo.CountUsernamesLike(ctx, slug)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return slug + strconv.Itoa(count), nil
	}

	return slug, nil
}

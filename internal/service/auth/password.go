package auth

import (
	"fmt"
	"time"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
)

// ComparePasswords verifies that the two password fields of a form match
func ComparePasswords(password1 string, password2 string) error {
	if password1 != password2 {
		return fmt.Errorf("auth: %w", apperrors.ErrPasswordMismatch)
	}
	return nil
}

// checkLastPassword runs after a failed password check. When the given
// password is the previous one, it returns a hint telling how long ago the
// password was changed. The hint is safe to show: it confirms nothing an
// owner of the old password would not already know.
// Any other outcome is a plain invalid credentials error.
func checkLastPassword(hasher PasswordHasher, creds models.Credentials, password string) error {
	if creds.LastPassword == "" || hasher.Compare(creds.LastPassword, password) != nil {
		return fmt.Errorf("auth: %w", apperrors.ErrInvalidCredentials)
	}

	changedAt := time.Unix(creds.PasswordUpdatedAt, 0)
	elapsed := time.Since(changedAt)

	months := int(elapsed.Hours() / 24 / 30)
	days := int(elapsed.Hours() / 24)
	hours := int(elapsed.Hours())

	var msg string
	switch {
	case months > 0:
		msg = fmt.Sprintf("You changed your password %s ago", plural(months, "month"))
	case days > 0:
		msg = fmt.Sprintf("You changed your password %s ago", plural(days, "day"))
	case hours > 0:
		msg = fmt.Sprintf("You changed your password %s ago", plural(hours, "hour"))
	default:
		msg = "You recently changed your password"
	}

	return &apperrors.HintError{Msg: msg, Err: apperrors.ErrPasswordChanged}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

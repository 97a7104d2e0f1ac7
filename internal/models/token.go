package models

import (
	"time"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenCodec, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

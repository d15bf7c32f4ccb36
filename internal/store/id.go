package store

import (
	"time"

	"github.com/google/uuid"
)

func newSessionID() string {
	return uuid.NewString()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

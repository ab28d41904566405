package service

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/felanocare/internal/ledger"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrTelegramRegistered  = errors.New("telegram account already registered")
	ErrAlreadyBooked       = errors.New("patient already has an active booking with this professional")
	ErrNoActiveBooking     = errors.New("no active booking with this professional")
	ErrProfessionalMissing = errors.New("professional not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrProductExists       = errors.New("already in products")
	ErrDrugSearchDisabled  = errors.New("drug search is not configured")
)

// unavailable помечает сбой хранилища так же, как это делает реестр
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ledger.ErrStoreUnavailable, err)
}

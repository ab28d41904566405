package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("slot not found")
	ErrSlotUnavailable  = errors.New("slot unavailable")
	ErrSlotWithdrawn    = fmt.Errorf("%w: slot withdrawn", ErrSlotUnavailable)
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnauthorized     = errors.New("operation not permitted for this session")
)

// ValidationError - некорректный ввод; Field указывает поле формы
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation проверяет, что err содержит ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

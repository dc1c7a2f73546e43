package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks out-of-domain numeric input: non-positive volume,
// negative counts, survivors exceeding totals. Calculators wrap it with
// context and fail fast; it is never clamped away. Test with errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNotFound is returned when reference validation fails within
// transactional helpers. Absence of historical data is not an error and never
// produces ErrNotFound; only lookups of a specific record by ID do.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

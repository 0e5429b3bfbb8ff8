// Package repository maps the external record store onto typed domain
// entities.  Adapters hold no business logic: they translate field names,
// decode values and surface a small set of sentinel errors that higher
// layers can distinguish with errors.Is.
package repository

import (
	"errors"

	"github.com/iliyamo/trading-storefront/internal/recordstore"
)

// ErrNotFound is returned when the requested record does not exist.
// Services translate it into a 404 or an authentication failure depending
// on context.
var ErrNotFound = errors.New("not found")

// ErrTimeout is returned when the record store did not answer in time.
// Handlers translate it into a 504 response.
var ErrTimeout = recordstore.ErrTimeout

// mapErr converts store sentinels into repository sentinels and passes
// everything else through.
func mapErr(err error) error {
	if errors.Is(err, recordstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

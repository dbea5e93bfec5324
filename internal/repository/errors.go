// Package repository persists areas, measurements, trips and area paths.
package repository

import (
	"errors"
	"fmt"
)

// ErrStore is matched by every error returned from the store.
var ErrStore = errors.New("store failure")

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

package srv

import (
	"context"
	"errors"
)

// cleanup releases resources at shutdown and does nothing on start.
type cleanup struct {
	fns []func() error
}

func (c *cleanup) Start(context.Context) error {
	return nil
}

// Shutdown runs every function, last registered first, and joins their errors.
func (c *cleanup) Shutdown(context.Context) error {
	var errs []error
	for i := len(c.fns) - 1; i >= 0; i-- {
		if c.fns[i] == nil {
			continue
		}
		if err := c.fns[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func NewCleanup(fns ...func() error) Service {
	return &cleanup{fns: fns}
}

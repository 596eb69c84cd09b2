package distribution

import (
	"context"
	"errors"

	"shortsbot/pipeline"
)

// MultiNotifier fans one message out to several channels
type MultiNotifier []pipeline.Notifier

// Send reports true when any channel delivered; channel errors are joined
func (m MultiNotifier) Send(ctx context.Context, message string) (bool, error) {
	var (
		delivered bool
		errs      []error
	)
	for _, n := range m {
		ok, err := n.Send(ctx, message)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = delivered || ok
	}
	return delivered, errors.Join(errs...)
}

package journal

import (
	"context"

	"go.uber.org/multierr"
)

type multi []Recorder

// Tee records every snapshot to all recorders. Every recorder is tried even
// when an earlier one fails; the failures are combined.
func Tee(rs ...Recorder) Recorder {
	out := make(multi, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multi) Record(ctx context.Context, s Snapshot) error {
	var err error
	for _, r := range m {
		err = multierr.Append(err, r.Record(ctx, s))
	}
	return err
}

func (m multi) Close() error {
	var err error
	for _, r := range m {
		err = multierr.Append(err, r.Close())
	}
	return err
}

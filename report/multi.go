package report

import (
	"errors"

	"github.com/sarchlab/tilebench/benchmarks"
)

// Multi fans samples out to several sinks.
type Multi []benchmarks.Sink

func (m Multi) Begin() error {
	for _, s := range m {
		if err := s.Begin(); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Write(sample benchmarks.Sample) error {
	for _, s := range m {
		if err := s.Write(sample); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

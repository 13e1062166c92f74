package report

import (
	"context"
	"errors"
	"fmt"
)

//Sink publishes finished reports somewhere outside the process
type Sink interface {
	Publish(ctx context.Context, rep *Report) error
	Close() error
}

//MultiSink publishes to every sink, failures of one do not stop the others
type MultiSink []Sink

var _ Sink = MultiSink(nil)

//Publish fufills Sink
func (ms MultiSink) Publish(ctx context.Context, rep *Report) error {
	var errs []error
	for i, sink := range ms {
		if err := sink.Publish(ctx, rep); err != nil {
			errs = append(errs, fmt.Errorf("Could not publish to sink %d (%T): %w", i, sink, err))
		}
	}
	return errors.Join(errs...)
}

//Close fufills Sink
func (ms MultiSink) Close() error {
	var errs []error
	for _, sink := range ms {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package dataset

import "fmt"

// SynchronizationGapError reports a missing stream, column, or trajectory row
// during synchronization. It is fatal for the whole preprocess stage: every
// downstream stage assumes a dense, complete frame table.
type SynchronizationGapError struct {
	Source string // table or stream the gap was found in
	Detail string
}

func (e *SynchronizationGapError) Error() string {
	return fmt.Sprintf("synchronization gap in %s: %s", e.Source, e.Detail)
}

// MissingFrameError reports an extracted frame file that should exist but
// does not. Frame extraction must be exhaustive over the requested range, so
// this is fatal rather than skippable.
type MissingFrameError struct {
	Stream       string
	TimestampKey string // millisecond-precision second key, e.g. "12.345"
}

func (e *MissingFrameError) Error() string {
	return fmt.Sprintf("no extracted frame for stream %s at timestamp %s", e.Stream, e.TimestampKey)
}

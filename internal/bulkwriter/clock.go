package bulkwriter

import "time"

// Clock supplies "now" to every timestamped row the writer emits. Tests
// inject a fixed clock so scenarios are reproducible, per spec §9's
// "monotonic clocks and timestamps" design note.
type Clock func() time.Time

// SystemClock is the default Clock, backed by time.Now.
func SystemClock() time.Time {
	return time.Now()
}

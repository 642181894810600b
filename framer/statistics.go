package framer

// Statistics is an immutable snapshot of framer counters, produced on demand
// by Stats. All fields reflect the same instant.
type Statistics struct {
	// Records is the total number of non-empty records delivered.
	Records int64 `json:"records"`

	// BytesReceived counts every byte consumed from the source, including
	// bytes later discarded by the overflow policy.
	BytesReceived int64 `json:"bytes_received"`

	// OverflowEvents counts drop-oldest evictions; one event covers the whole
	// shortfall of a batch regardless of how many bytes it evicted.
	OverflowEvents int64 `json:"overflow_events"`

	// BytesDiscarded accumulates bytes lost to overflow plus bytes removed by
	// Discard.
	BytesDiscarded int64 `json:"bytes_discarded"`

	// EmptyRecords counts delimiter matches at offset zero, which are skipped
	// rather than delivered.
	EmptyRecords int64 `json:"empty_records"`

	// ManualDiscards counts Discard calls, including calls on an empty buffer.
	ManualDiscards int64 `json:"manual_discards"`

	// CallbackFaults counts handler panics recovered at the delivery sites.
	CallbackFaults int64 `json:"callback_faults"`

	// PeakUsage is the high-water mark of buffered bytes. Monotone
	// non-decreasing for the framer's lifetime; Discard does not lower it.
	PeakUsage int `json:"peak_usage"`

	// Usage is the number of bytes buffered at snapshot time.
	Usage int `json:"usage"`
}

package metrics

import (
	"testing"
	"time"
)

// The collectors are process-global; the test exercises every helper once to
// catch label-cardinality mistakes and double-registration panics.
func TestHelpersDoNotPanic(t *testing.T) {
	Init()
	Init()

	IncScanRun("ok")
	IncScanRun("failed")
	AddSourcesScanned(12)
	IncMatch("new")
	IncMatch("duplicate")
	ObserveFloodWait("recent_items", 5*time.Second)
	IncSignalGenerated("NHL")
	IncSignalSettled("WIN")
	IncDeliveryMessage("signal")
	ObserveScanDuration(3 * time.Second)
	SetPendingRemaining(4)
}

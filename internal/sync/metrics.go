package sync

// Metrics receives reconciliation and listener instrumentation. Implemented
// by the Prometheus metrics service; a nil value is replaced with a no-op.
type Metrics interface {
	ObserveReconcile(collection string, applied, skipped int)
	ObserveListenerEvent(collection, outcome string)
	SetActiveListeners(count int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveReconcile(string, int, int)   {}
func (noopMetrics) ObserveListenerEvent(string, string) {}
func (noopMetrics) SetActiveListeners(int)              {}

package core

// Metrics records the outcome of cascades and ledger writes.
type Metrics interface {
	// ObserveCascade records one cascade run; mutations counts every dependent row deleted or updated.
	ObserveCascade(op string, err error, mutations int)
	// ObserveLedger records one ledger write or clear.
	ObserveLedger(op string, err error)
}

// NopMetrics discards everything.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) ObserveCascade(string, error, int) {}
func (NopMetrics) ObserveLedger(string, error)       {}

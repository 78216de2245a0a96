//go:build !unix

package lifecycle

// SignalSource is a Manual source on platforms without job-control
// signals; it never reports transitions by itself.
type SignalSource struct {
	*Manual
}

// NewSignalSource returns a source that stays Active.
func NewSignalSource() *SignalSource {
	return &SignalSource{Manual: NewManual(Active)}
}

// Stop is a no-op.
func (s *SignalSource) Stop() {}

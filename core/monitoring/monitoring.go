package monitoring

import "time"

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any)
	Flush(timeout time.Duration)
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any)                          {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation. A nil monitor is ignored.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	current.CaptureException(err, tags)
}

// CaptureAgentError tags err with the module and agent that produced it.
func CaptureAgentError(err error, module, agentID string) {
	CaptureException(err, map[string]string{"module": module, "agent_id": agentID})
}

// CapturePanic reports a recovered panic value. Callers re-panic afterwards.
func CapturePanic(v any) { current.CapturePanic(v) }

// Flush flushes buffered events.
func Flush(d time.Duration) { current.Flush(d) }

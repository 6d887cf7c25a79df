package relay

import (
	"expvar"
	"sync"
)

// Metrics counts webhook outcomes. The zero value is ready to use.
type Metrics struct {
	Received         expvar.Int
	Ignored          expvar.Int
	Succeeded        expvar.Int
	Failed           expvar.Int
	StoreUnavailable expvar.Int
	DispatchFailed   expvar.Int
	DegradedLoads    expvar.Int
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"received":          m.Received.Value(),
		"ignored":           m.Ignored.Value(),
		"succeeded":         m.Succeeded.Value(),
		"failed":            m.Failed.Value(),
		"store_unavailable": m.StoreUnavailable.Value(),
		"dispatch_failed":   m.DispatchFailed.Value(),
		"degraded_loads":    m.DegradedLoads.Value(),
	}
}

var publishOnce sync.Once

// Publish exposes m under the "relay" expvar. Only the first call in a
// process publishes; expvar names are global.
func (m *Metrics) Publish() {
	publishOnce.Do(func() {
		expvar.Publish("relay", expvar.Func(func() any { return m.Snapshot() }))
	})
}

package guardrail

import (
	"sync"
	"time"
)

// driftState tracks one conversation's safety-temperature.
type driftState struct {
	temperature float64
	lastUpdate  time.Time
}

// DriftMonitor maintains a per-conversation safety-temperature T in [0,1].
// Warn events raise T and elapsed time decays it; a turn without a warn
// adds nothing and lowers T only through that time decay. T > 0.7 makes the
// Pipeline Driver add a safety instruction to the system prompt; T > 0.9
// forces a soft block and resets.
type DriftMonitor struct {
	mu          sync.Mutex
	states      map[string]*driftState
	decayPerMin float64
	warnDelta   float64
}

// NewDriftMonitor creates a monitor with the spec defaults: warn events add
// 0.15 to the temperature, and it decays by 0.05 per idle minute.
func NewDriftMonitor() *DriftMonitor {
	return &DriftMonitor{
		states:      make(map[string]*driftState),
		decayPerMin: 0.05,
		warnDelta:   0.15,
	}
}

// Observe records a turn's worst severity for a conversation and returns the
// resulting temperature after decay and update.
func (m *DriftMonitor) Observe(conversationID string, severity Severity) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[conversationID]
	if !ok {
		st = &driftState{lastUpdate: time.Now()}
		m.states[conversationID] = st
	}

	elapsed := time.Since(st.lastUpdate).Minutes()
	st.temperature -= elapsed * m.decayPerMin
	if st.temperature < 0 {
		st.temperature = 0
	}

	if severity >= Warn {
		st.temperature += m.warnDelta
	}
	if st.temperature > 1 {
		st.temperature = 1
	}

	st.lastUpdate = time.Now()
	return st.temperature
}

// Reset clears a conversation's temperature, e.g. after a forced soft-block
// reset at T > 0.9.
func (m *DriftMonitor) Reset(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, conversationID)
}

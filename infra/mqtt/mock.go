package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/core/charger"
)

// MockCommander is an in-memory charger.Commander for tests and the
// simulator.
type MockCommander struct {
	mu         sync.Mutex
	starts     []int
	stops      int
	state      charger.State
	stateKnown bool

	// FailStart, when set, is returned by Start.
	FailStart error
	// AckErr, when set, is returned by WaitForAck.
	AckErr error
}

var _ charger.Commander = (*MockCommander)(nil)

// NewMockCommander creates a mock commander.
func NewMockCommander() *MockCommander {
	return &MockCommander{}
}

// SetState sets the state the mock reports.
func (m *MockCommander) SetState(st charger.State) {
	m.mu.Lock()
	m.state = st
	m.stateKnown = true
	m.mu.Unlock()
}

// Start implements charger.Commander.
func (m *MockCommander) Start(_ context.Context, maxCurrentA int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStart != nil {
		return "", m.FailStart
	}
	if m.stateKnown && !m.state.Plugged {
		return "", charger.ErrUnplugged
	}
	m.starts = append(m.starts, maxCurrentA)
	m.state.Charging = true
	return fmt.Sprintf("cmd-start-%d", len(m.starts)), nil
}

// Stop implements charger.Commander.
func (m *MockCommander) Stop(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.state.Charging = false
	return fmt.Sprintf("cmd-stop-%d", m.stops), nil
}

// WaitForAck implements charger.Commander.
func (m *MockCommander) WaitForAck(string, time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.AckErr
}

// State implements charger.Commander.
func (m *MockCommander) State() (charger.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.stateKnown
}

// Starts returns the max current of every start command received.
func (m *MockCommander) Starts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.starts))
	copy(out, m.starts)
	return out
}

// Stops returns the number of stop commands received.
func (m *MockCommander) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Package agent tracks the live "agent is thinking" panel state for one
// in-flight turn: which tools the agent is invoking and how far along each
// one is. Historical turns never touch this machine; their tool calls are
// rebuilt from persisted content blocks (see projection.go).
package agent

import (
	"sync"
	"time"
)

// State of the agent machine.
type State string

const (
	StateSleeping State = "sleeping" // idle, no turn in progress
	StateThinking State = "thinking" // turn in progress, tool calls tracked
	StateLeaving  State = "leaving"  // terminal, auto-reverts to sleeping
)

// ToolUseState is the per-tool-call status.
type ToolUseState string

const (
	ToolRunning ToolUseState = "running"
	ToolSuccess ToolUseState = "success"
	ToolError   ToolUseState = "error"
)

// Event types
const (
	EventWakeup     = "wakeup"
	EventGoOn       = "go-on"
	EventToolResult = "tool-result"
	EventGoodbye    = "goodbye"
)

// Event is one agent notification from the streaming reconciler.
type Event struct {
	Type      string
	ToolUseID string
	Name      string
	Input     map[string]any
	Status    ToolUseState
	Content   string
}

// ToolCall is the tracked status of one tool invocation during the turn.
// Content holds a short preview of the result, not the full payload.
type ToolCall struct {
	Name    string
	Input   map[string]any
	Status  ToolUseState
	Content string
}

// DefaultLeaveDelay is how long the machine lingers in StateLeaving before
// reverting to StateSleeping, giving the UI time for a finishing animation.
const DefaultLeaveDelay = 2500 * time.Millisecond

// toolResultPreviewLen caps the stored result content.
const toolResultPreviewLen = 20

// Machine is the per-turn tool-call state machine.
// All methods are safe for concurrent use.
type Machine struct {
	mu         sync.Mutex
	state      State
	tools      map[string]ToolCall
	leaveDelay time.Duration
	timer      *time.Timer
	afterFunc  func(time.Duration, func()) *time.Timer
	onChange   func(State)
}

// Option configures a Machine.
type Option func(*Machine)

// WithLeaveDelay overrides the leaving -> sleeping auto-revert delay.
func WithLeaveDelay(d time.Duration) Option {
	return func(m *Machine) { m.leaveDelay = d }
}

// WithStateChange registers a callback invoked (outside the machine's lock)
// whenever the state changes, including the timed auto-revert.
func WithStateChange(fn func(State)) Option {
	return func(m *Machine) { m.onChange = fn }
}

// withAfterFunc swaps the timer constructor; tests use it to fire the
// auto-revert deterministically.
func withAfterFunc(fn func(time.Duration, func()) *time.Timer) Option {
	return func(m *Machine) { m.afterFunc = fn }
}

// NewMachine creates a machine in StateSleeping with an empty tool-call map.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		state:      StateSleeping,
		tools:      make(map[string]ToolCall),
		leaveDelay: DefaultLeaveDelay,
		afterFunc:  time.AfterFunc,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dispatch applies one event. Events not handled in the current state are
// ignored, matching the declarative transition table this machine encodes:
//
//	sleeping --wakeup--> thinking (tool map cleared)
//	thinking --go-on--> thinking (tool added, status running)
//	thinking --tool-result--> thinking (tool updated; unknown id is a no-op)
//	thinking --goodbye--> leaving (tool map cleared)
//	leaving --after leave delay--> sleeping
func (m *Machine) Dispatch(ev Event) {
	m.mu.Lock()
	changed := false

	switch m.state {
	case StateSleeping:
		if ev.Type == EventWakeup {
			m.tools = make(map[string]ToolCall)
			m.state = StateThinking
			changed = true
		}

	case StateThinking:
		switch ev.Type {
		case EventGoOn:
			m.tools[ev.ToolUseID] = ToolCall{
				Name:   ev.Name,
				Input:  ev.Input,
				Status: ToolRunning,
			}
		case EventToolResult:
			// Unknown tool ids are dropped rather than erroring; rapid
			// back-to-back tool calls can deliver results the panel never
			// saw announced.
			if tool, ok := m.tools[ev.ToolUseID]; ok {
				tool.Status = ev.Status
				tool.Content = preview(ev.Content)
				m.tools[ev.ToolUseID] = tool
			}
		case EventGoodbye:
			// Clear before the revert delay so the finishing animation shows
			// no stale cards.
			m.tools = make(map[string]ToolCall)
			m.state = StateLeaving
			changed = true
			m.timer = m.afterFunc(m.leaveDelay, m.leaveExpired)
		}

	case StateLeaving:
		// No events handled; only the timer leaves this state.
	}

	state := m.state
	m.mu.Unlock()

	if changed && m.onChange != nil {
		m.onChange(state)
	}
}

// leaveExpired is the timed leaving -> sleeping transition.
func (m *Machine) leaveExpired() {
	m.mu.Lock()
	if m.state != StateLeaving {
		m.mu.Unlock()
		return
	}
	m.state = StateSleeping
	m.timer = nil
	state := m.state
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ToolCalls returns a copy of the tracked tool-call map.
func (m *Machine) ToolCalls() map[string]ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ToolCall, len(m.tools))
	for id, tool := range m.tools {
		out[id] = tool
	}
	return out
}

// Stop cancels a pending auto-revert timer. Call when tearing down the
// owning controller.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func preview(content string) string {
	if len(content) > toolResultPreviewLen {
		return content[:toolResultPreviewLen]
	}
	return content
}

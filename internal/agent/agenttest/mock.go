// Package agenttest provides test doubles for the agent package.
package agenttest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/flemzord/cronclaw/internal/agent"
)

// MockAgent is a configurable test double for agent.Agent.
type MockAgent struct {
	BackendVal agent.Backend
	PromptFunc func(ctx context.Context, text string) (string, error)

	mu      sync.Mutex
	prompts []string
	skills  []string

	AbortCalls atomic.Int32
	ClearCalls atomic.Int32
	CloseCalls atomic.Int32
}

// Compile-time interface check.
var _ agent.Agent = (*MockAgent)(nil)

// Backend implements agent.Agent.
func (m *MockAgent) Backend() agent.Backend { return m.BackendVal }

// Prompt implements agent.Agent and records text.
func (m *MockAgent) Prompt(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, text)
	m.mu.Unlock()

	if m.PromptFunc != nil {
		return m.PromptFunc(ctx, text)
	}
	return "ok: " + text, nil
}

// Abort implements agent.Agent.
func (m *MockAgent) Abort(_ context.Context) error {
	m.AbortCalls.Add(1)
	return nil
}

// Clear implements agent.Agent.
func (m *MockAgent) Clear(_ context.Context) error {
	m.ClearCalls.Add(1)
	return nil
}

// LoadSkill implements agent.Agent.
func (m *MockAgent) LoadSkill(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skills = append(m.skills, name)
	return nil
}

// Close implements agent.Agent.
func (m *MockAgent) Close() error {
	m.CloseCalls.Add(1)
	return nil
}

// Prompts returns the texts received so far.
func (m *MockAgent) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Skills returns the skills loaded so far.
func (m *MockAgent) Skills() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.skills...)
}

// MockFactory creates MockAgents and remembers them.
type MockFactory struct {
	// Err, when set, is returned by every New call.
	Err error

	// PromptFunc is copied into each created agent.
	PromptFunc func(ctx context.Context, text string) (string, error)

	mu      sync.Mutex
	created []*MockAgent
}

// Compile-time interface check.
var _ agent.Factory = (*MockFactory)(nil)

// New implements agent.Factory.
func (f *MockFactory) New(_ context.Context, _ uint64, backend agent.Backend) (agent.Agent, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	a := &MockAgent{BackendVal: backend, PromptFunc: f.PromptFunc}
	f.mu.Lock()
	f.created = append(f.created, a)
	f.mu.Unlock()
	return a, nil
}

// Created returns every agent built so far.
func (f *MockFactory) Created() []*MockAgent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockAgent(nil), f.created...)
}

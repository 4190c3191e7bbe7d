package internal_agent

import "github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"

type Option func(*alphaBotAgentImpl)

// WithGate replaces the register gate chosen from the configuration.
func WithGate(gate mmio.Gate) Option {
	return func(a *alphaBotAgentImpl) {
		a.gate = gate
		a.platform = "custom"
	}
}

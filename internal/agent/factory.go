package agent

import (
	"fmt"

	"agentsim/internal/domain"
)

// New constructs the named architecture variant. teamSize is only consulted
// for the hybrid variant.
func New(arch domain.Architecture, agentID string, numAgents, teamSize int, caps domain.Capabilities) (Agent, error) {
	switch arch {
	case domain.ArchitectureSingle:
		return NewSingleAgent(agentID, caps), nil
	case domain.ArchitectureIndependent:
		return NewIndependentMultiAgent(agentID, numAgents, caps)
	case domain.ArchitectureCentralized:
		return NewCentralizedMultiAgent(agentID, numAgents, caps)
	case domain.ArchitectureDecentralized:
		return NewDecentralizedMultiAgent(agentID, numAgents, caps)
	case domain.ArchitectureHybrid:
		return NewHybridMultiAgent(agentID, numAgents, teamSize, caps)
	default:
		return nil, fmt.Errorf("unknown architecture %q", arch)
	}
}

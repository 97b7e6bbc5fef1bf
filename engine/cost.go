package engine

import "github.com/rasad8686/BotBuilder-Platform-sub005/types"

// costPerToken is the flat provider-agnostic rate: $0.002 per 1,000 tokens.
const costPerToken = 0.000002

// CalculateCost converts a token count into US dollars. Non-positive counts
// cost nothing.
func CalculateCost(tokens int64) float64 {
	if tokens <= 0 {
		return 0
	}
	return float64(tokens) * costPerToken
}

// BuildAgentBreakdown aggregates step records into one entry per agent:
// summed duration and tokens, with name and role taken from the registered
// definition. Entry order follows the first-seen agent order of steps; a
// missing role defaults to "agent".
func BuildAgentBreakdown(steps []*types.AgentExecutionStep, registry *Registry) []types.AgentBreakdown {
	var breakdown []types.AgentBreakdown
	index := make(map[int64]int)

	for _, step := range steps {
		i, ok := index[step.AgentID]
		if !ok {
			name := ""
			role := "agent"
			if _, def, found := registry.Get(step.AgentID); found && def != nil {
				name = def.Name
				if def.Role != "" {
					role = def.Role
				}
			}
			breakdown = append(breakdown, types.AgentBreakdown{
				AgentID: step.AgentID,
				Name:    name,
				Role:    role,
			})
			i = len(breakdown) - 1
			index[step.AgentID] = i
		}
		breakdown[i].DurationMS += step.DurationMS
		breakdown[i].Tokens += step.TokensUsed
	}
	return breakdown
}

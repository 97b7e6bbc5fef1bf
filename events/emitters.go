package events

// Event type discriminators carried by every broadcast payload.
const (
	TypeExecutionStart    = "execution:start"
	TypeStepStart         = "step:start"
	TypeStepProgress      = "step:progress"
	TypeStepComplete      = "step:complete"
	TypeStepFailed        = "step:failed"
	TypeAgentMessage      = "agent:message"
	TypeExecutionComplete = "execution:complete"
	TypeExecutionError    = "execution:error"
	TypeExecutionPaused   = "execution:paused"
	TypeExecutionResumed  = "execution:resumed"
)

// EmitExecutionStart announces a run entering the running state.
func (c *Channel) EmitExecutionStart(executionID string, workflowID int64, workflowType string) {
	c.Broadcast(executionID, TypeExecutionStart, map[string]any{
		"workflowId":   workflowID,
		"workflowType": workflowType,
	})
}

// EmitStepStart announces one agent invocation beginning.
func (c *Channel) EmitStepStart(executionID string, agentID int64, order int) {
	c.Broadcast(executionID, TypeStepStart, map[string]any{
		"agentId": agentID,
		"order":   order,
	})
}

// EmitStepProgress reports intermediate progress of a running step, such as
// a retry attempt.
func (c *Channel) EmitStepProgress(executionID string, agentID int64, order int, detail map[string]any) {
	data := map[string]any{
		"agentId": agentID,
		"order":   order,
	}
	for k, v := range detail {
		data[k] = v
	}
	c.Broadcast(executionID, TypeStepProgress, data)
}

// EmitStepComplete announces one agent invocation succeeding.
func (c *Channel) EmitStepComplete(executionID string, agentID int64, order int, output any, tokensUsed, durationMS int64) {
	c.Broadcast(executionID, TypeStepComplete, map[string]any{
		"agentId":    agentID,
		"order":      order,
		"output":     output,
		"tokensUsed": tokensUsed,
		"durationMs": durationMS,
	})
}

// EmitStepFailed announces one agent invocation exhausting its retries.
func (c *Channel) EmitStepFailed(executionID string, agentID int64, order int, errMsg string) {
	c.Broadcast(executionID, TypeStepFailed, map[string]any{
		"agentId": agentID,
		"order":   order,
		"error":   errMsg,
	})
}

// EmitAgentMessage forwards a free-form message produced by an agent while
// it runs (streamed partial output, tool chatter).
func (c *Channel) EmitAgentMessage(executionID string, agentID int64, message any) {
	c.Broadcast(executionID, TypeAgentMessage, map[string]any{
		"agentId": agentID,
		"message": message,
	})
}

// EmitExecutionComplete is the terminal event of a successful run.
func (c *Channel) EmitExecutionComplete(executionID string, output any, totalTokens, durationMS int64) {
	c.Broadcast(executionID, TypeExecutionComplete, map[string]any{
		"output":      output,
		"totalTokens": totalTokens,
		"durationMs":  durationMS,
	})
}

// EmitExecutionError is the terminal event of a failed run.
func (c *Channel) EmitExecutionError(executionID string, errMsg string) {
	c.Broadcast(executionID, TypeExecutionError, map[string]any{
		"error": errMsg,
	})
}

// EmitExecutionPaused reports a run acknowledged as paused.
func (c *Channel) EmitExecutionPaused(executionID, requestedBy string) {
	c.Broadcast(executionID, TypeExecutionPaused, map[string]any{
		"requestedBy": requestedBy,
	})
}

// EmitExecutionResumed reports a paused run resuming.
func (c *Channel) EmitExecutionResumed(executionID, requestedBy string) {
	c.Broadcast(executionID, TypeExecutionResumed, map[string]any{
		"requestedBy": requestedBy,
	})
}

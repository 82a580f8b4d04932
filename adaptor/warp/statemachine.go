package warp

import (
	"github.com/relaygate/core/streamengine"
)

// RunStateMachine drives emitter through the Warp streaming state machine
// (INIT -> MSG_STARTED -> [TEXT_OPEN|TOOL_OPEN]* -> FINISHING -> DONE) for
// one decoded Event. messageStarted is the caller's running flag across
// calls for the same request, since message_start must fire exactly once
// before the first content event.
func RunStateMachine(emitter *streamengine.Emitter, ev Event, messageStarted *bool) error {
	switch ev.Type {
	case EventStreamInit:
		// conversation/request ids are session bookkeeping only; no
		// client-facing frame corresponds to them in the canonical schema.
		return nil

	case EventTextDelta:
		if err := ensureStarted(emitter, messageStarted); err != nil {
			return err
		}
		return emitter.TextDelta(ev.Text)

	case EventReasoningDelta:
		if err := ensureStarted(emitter, messageStarted); err != nil {
			return err
		}
		return emitter.ReasoningDelta(ev.Text)

	case EventToolUse:
		if err := ensureStarted(emitter, messageStarted); err != nil {
			return err
		}
		return emitter.ToolUse(ev.ToolUseID, ev.ToolName, string(ev.ToolInput))

	case EventTaskCreated, EventTaskStatus:
		// Task lifecycle bookkeeping has no canonical content-block
		// equivalent; it is tracked at the session level only.
		return nil

	case EventStreamFinished:
		if err := ensureStarted(emitter, messageStarted); err != nil {
			return err
		}
		return emitter.Finish(ev.StopReason, "", int(ev.Usage.OutputTokens))
	}
	return nil
}

func ensureStarted(emitter *streamengine.Emitter, messageStarted *bool) error {
	if *messageStarted {
		return nil
	}
	*messageStarted = true
	return emitter.MessageStart()
}

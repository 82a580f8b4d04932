package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/httperr"
)

// ToolExecutor runs a single shell command against a working directory and
// reports its outcome. The production implementation — a sandboxed command
// runner — is outside this gateway's scope (the spec treats the embedded
// command executor behind "multi-agent" endpoints as an untrusted external
// tool runner); this interface is the seam the core depends on instead.
type ToolExecutor interface {
	Execute(ctx context.Context, command, workingDir string) (output string, isError bool, err error)
}

// Tools implements /w/v1/tools/execute: the client-driven half of Warp's
// agentic loop, where a shell command the model proposed gets run locally
// and its output fed back as a tool_result.
type Tools struct {
	Executor ToolExecutor
}

type toolExecuteRequest struct {
	ToolUseID  string `json:"tool_use_id"`
	Command    string `json:"command"`
	WorkingDir string `json:"working_dir"`
}

type toolExecuteResponse struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Execute handles POST /w/v1/tools/execute.
func (h *Tools) Execute(c *gin.Context) {
	var req toolExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.WriteJSON(c, httperr.SchemaAnthropic, errs.ClientError("decode tool execute request: "+err.Error()))
		return
	}
	if req.Command == "" || req.ToolUseID == "" {
		httperr.WriteJSON(c, httperr.SchemaAnthropic, errs.ClientError("tool_use_id and command are required"))
		return
	}
	if h.Executor == nil {
		httperr.WriteJSON(c, httperr.SchemaAnthropic, errs.New(errs.KindProtocolError, "no tool executor configured"))
		return
	}

	workingDir := req.WorkingDir
	if workingDir == "" {
		workingDir = "/tmp"
	}

	output, isError, err := h.Executor.Execute(c.Request.Context(), req.Command, workingDir)
	if err != nil {
		c.JSON(http.StatusOK, toolExecuteResponse{
			Type: "tool_result", ToolUseID: req.ToolUseID, Content: err.Error(), IsError: true,
		})
		return
	}
	c.JSON(http.StatusOK, toolExecuteResponse{
		Type: "tool_result", ToolUseID: req.ToolUseID, Content: output, IsError: isError,
	})
}

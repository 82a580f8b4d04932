package wire

// Field numbers below are this implementation's own stable numbering for
// Warp's undocumented warp.multi_agent.v1 schema (Warp does not publish a
// .proto file); they are internally consistent between Marshal and Decode
// but are not guaranteed to match Warp's actual wire numbering field-for-
// field. Any unknown field on decode is ignored rather than rejected, which
// keeps this codec forward-compatible with upstream schema additions.

// ---- Request tree ----

const (
	fieldRequestTaskContext = 1
	fieldRequestInput       = 2
	fieldRequestSettings    = 3
	fieldRequestMetadata    = 4
)

const (
	fieldTaskContextTasks         = 1
	fieldTaskContextActiveTaskID  = 2
)

const (
	fieldTaskID          = 1
	fieldTaskDescription = 2
	fieldTaskStatus      = 3
	fieldTaskMessages    = 4
	fieldTaskSummary     = 5
)

const (
	fieldTaskMessageID              = 1
	fieldTaskMessageUserQuery       = 2
	fieldTaskMessageToolCallResult  = 3
	fieldTaskMessageAgentOutput     = 4
	fieldTaskMessageToolCall        = 5
)

const (
	fieldUserQueryText                   = 1
	fieldUserQueryContext                = 2
	fieldUserQueryReferencedAttachments  = 3
)

const (
	fieldAgentOutputText      = 1
	fieldAgentOutputReasoning = 2
)

const (
	fieldToolCallID               = 1
	fieldToolCallName             = 2
	fieldToolCallRunShellCommand  = 3
	fieldToolCallReadFiles        = 4
	fieldToolCallApplyFileDiffs   = 5
	fieldToolCallGrep             = 6
	fieldToolCallFileGlobV2       = 7
	fieldToolCallCallMcpTool      = 8
)

const (
	fieldRunShellCommandCommand    = 1
	fieldRunShellCommandIsReadOnly = 2
	fieldRunShellCommandIsRisky    = 3
	fieldRunShellCommandUsesPager  = 4
)

const (
	fieldReadFilesFiles = 1
	fieldReadFileName   = 1
	fieldReadFileRanges = 2
)

const (
	fieldApplyFileDiffsNewFiles = 1
	fieldApplyFileDiffsDiffs    = 2
	fieldNewFilePath            = 1
	fieldNewFileContent         = 2
	fieldDiffFilePath           = 1
	fieldDiffSearch             = 2
	fieldDiffReplace            = 3
)

const (
	fieldGrepQueries = 1
	fieldGrepPath    = 2
)

const (
	fieldGlobPatterns   = 1
	fieldGlobSearchDir  = 2
	fieldGlobMaxMatches = 3
	fieldGlobMaxDepth   = 4
	fieldGlobMinDepth   = 5
)

const (
	fieldMcpName = 1
	fieldMcpArgs = 2
)

const (
	fieldToolResultCallID  = 1
	fieldToolResultSuccess = 2
	fieldToolResultError   = 3
	fieldToolResultSuccessContent = 1
	fieldToolResultErrorMessage   = 1
)

const (
	fieldInputContext    = 1
	fieldInputUserInputs = 2
)

const (
	fieldContextDirectory       = 1
	fieldContextOperatingSystem = 2
	fieldContextShell           = 3
	fieldContextCurrentTime     = 4
	fieldContextProjectRules    = 5
)

const (
	fieldDirectoryPwd  = 1
	fieldDirectoryHome = 2
)

const fieldOSPlatform = 1

const (
	fieldShellName    = 1
	fieldShellVersion = 2
)

const (
	fieldTimeSeconds = 1
	fieldTimeNanos   = 2
)

const (
	fieldProjectRulePath      = 1
	fieldProjectRuleRuleFiles = 2
	fieldRuleFilePath         = 1
	fieldRuleFileContent      = 2
)

const fieldUserInputsInputs = 1
const (
	fieldUserInputEntryQuery      = 1
	fieldUserInputEntryToolResult = 2
)

const (
	fieldSettingsModel        = 1
	fieldSettingsRulesEnabled = 2
	fieldSettingsParallelTool = 3
	fieldSettingsPlanning     = 4
	fieldSettingsSupportedTools = 5
)

const fieldMetadataConversationID = 1

// ---- ResponseEvent tree ----

const (
	fieldEventInit          = 1
	fieldEventClientActions = 2
	fieldEventFinished      = 3
)

const (
	fieldInitConversationID = 1
	fieldInitRequestID      = 2
)

const fieldClientActionsActions = 1

const (
	fieldActionAppendContent    = 1
	fieldActionAddMessages      = 2
	fieldActionUpdateTaskMsg    = 3
	fieldActionCreateTask       = 4
	fieldActionUpdateTaskStatus = 5
)

const fieldAppendContentMessage = 1
const fieldAddMessagesMessages = 1
const fieldUpdateTaskMsgMessage = 1
const fieldCreateTaskTaskID = 1
const (
	fieldUpdateStatusTaskID = 1
	fieldUpdateStatusStatus = 2
)

const (
	fieldFinishedReason     = 1
	fieldFinishedTokenUsage = 2
)

const (
	fieldUsageInput         = 1
	fieldUsageOutput        = 2
	fieldUsageCacheRead     = 3
	fieldUsageCacheCreation = 4
)

// --- Request-side domain types ---

type TaskMessage struct {
	ID              string
	UserQuery       string
	ToolCallResult  *ToolCallResult
	AgentText       string
	AgentReasoning  bool // whether AgentText carries a reasoning payload instead of text
	ToolCall        *ToolCall
}

func (m TaskMessage) marshalInto(b *Builder) {
	b.AppendString(fieldTaskMessageID, m.ID)
	if m.ToolCallResult != nil {
		b.AppendMessage(fieldTaskMessageToolCallResult, m.ToolCallResult.Marshal())
		return
	}
	if m.ToolCall != nil {
		b.AppendMessage(fieldTaskMessageToolCall, m.ToolCall.Marshal())
		return
	}
	if m.AgentReasoning {
		ab := NewBuilder()
		ab.AppendString(fieldAgentOutputReasoning, m.AgentText)
		b.AppendMessage(fieldTaskMessageAgentOutput, ab.Bytes())
		return
	}
	if m.AgentText != "" {
		ab := NewBuilder()
		ab.AppendString(fieldAgentOutputText, m.AgentText)
		b.AppendMessage(fieldTaskMessageAgentOutput, ab.Bytes())
		return
	}
	uq := NewBuilder()
	uq.AppendString(fieldUserQueryText, m.UserQuery)
	uq.AppendMessage(fieldUserQueryReferencedAttachments, nil)
	b.AppendMessage(fieldTaskMessageUserQuery, uq.Bytes())
}

type ToolCall struct {
	ID               string
	WarpType         string
	RunShellCommand  *RunShellCommand
	ReadFiles        []string
	NewFiles         []NewFile
	Diffs            []Diff
	GrepQueries      []string
	GrepPath         string
	GlobPatterns     []string
	GlobSearchDir    string
	McpName          string
	McpArgsJSON      string
}

type RunShellCommand struct {
	Command    string
	IsReadOnly bool
	IsRisky    bool
}

type NewFile struct {
	FilePath string
	Content  string
}

type Diff struct {
	FilePath string
	Search   string
	Replace  string
}

func (t ToolCall) Marshal() []byte {
	b := NewBuilder()
	b.AppendString(fieldToolCallID, t.ID)
	b.AppendString(fieldToolCallName, t.WarpType)

	switch t.WarpType {
	case "RUN_SHELL_COMMAND":
		rb := NewBuilder()
		if t.RunShellCommand != nil {
			rb.AppendString(fieldRunShellCommandCommand, t.RunShellCommand.Command)
			rb.AppendBool(fieldRunShellCommandIsReadOnly, t.RunShellCommand.IsReadOnly)
			rb.AppendBool(fieldRunShellCommandIsRisky, t.RunShellCommand.IsRisky)
		}
		b.AppendMessage(fieldToolCallRunShellCommand, rb.Bytes())
	case "READ_FILES":
		rb := NewBuilder()
		for _, f := range t.ReadFiles {
			fb := NewBuilder()
			fb.AppendString(fieldReadFileName, f)
			rb.AppendMessage(fieldReadFilesFiles, fb.Bytes())
		}
		b.AppendMessage(fieldToolCallReadFiles, rb.Bytes())
	case "APPLY_FILE_DIFFS":
		rb := NewBuilder()
		for _, nf := range t.NewFiles {
			nb := NewBuilder()
			nb.AppendString(fieldNewFilePath, nf.FilePath)
			nb.AppendString(fieldNewFileContent, nf.Content)
			rb.AppendMessage(fieldApplyFileDiffsNewFiles, nb.Bytes())
		}
		for _, d := range t.Diffs {
			db := NewBuilder()
			db.AppendString(fieldDiffFilePath, d.FilePath)
			db.AppendString(fieldDiffSearch, d.Search)
			db.AppendString(fieldDiffReplace, d.Replace)
			rb.AppendMessage(fieldApplyFileDiffsDiffs, db.Bytes())
		}
		b.AppendMessage(fieldToolCallApplyFileDiffs, rb.Bytes())
	case "GREP":
		rb := NewBuilder()
		for _, q := range t.GrepQueries {
			rb.AppendString(fieldGrepQueries, q)
		}
		rb.AppendString(fieldGrepPath, t.GrepPath)
		b.AppendMessage(fieldToolCallGrep, rb.Bytes())
	case "FILE_GLOB_V2":
		rb := NewBuilder()
		for _, p := range t.GlobPatterns {
			rb.AppendString(fieldGlobPatterns, p)
		}
		rb.AppendString(fieldGlobSearchDir, t.GlobSearchDir)
		b.AppendMessage(fieldToolCallFileGlobV2, rb.Bytes())
	case "CALL_MCP_TOOL":
		rb := NewBuilder()
		rb.AppendString(fieldMcpName, t.McpName)
		rb.AppendString(fieldMcpArgs, t.McpArgsJSON)
		b.AppendMessage(fieldToolCallCallMcpTool, rb.Bytes())
	}
	return b.Bytes()
}

type ToolCallResult struct {
	CallID       string
	SuccessText  string
	ErrorMessage string
	IsError      bool
}

func (r ToolCallResult) Marshal() []byte {
	b := NewBuilder()
	b.AppendString(fieldToolResultCallID, r.CallID)
	if r.IsError {
		eb := NewBuilder()
		eb.AppendString(fieldToolResultErrorMessage, r.ErrorMessage)
		b.AppendMessage(fieldToolResultError, eb.Bytes())
	} else {
		sb := NewBuilder()
		sb.AppendString(fieldToolResultSuccessContent, r.SuccessText)
		b.AppendMessage(fieldToolResultSuccess, sb.Bytes())
	}
	return b.Bytes()
}

type Task struct {
	ID          string
	Description string
	Status      string
	Messages    []TaskMessage
	Summary     string
}

func (t Task) Marshal() []byte {
	b := NewBuilder()
	b.AppendString(fieldTaskID, t.ID)
	b.AppendString(fieldTaskDescription, t.Description)
	b.AppendString(fieldTaskStatus, t.Status)
	for _, m := range t.Messages {
		mb := NewBuilder()
		m.marshalInto(mb)
		b.AppendMessage(fieldTaskMessages, mb.Bytes())
	}
	b.AppendString(fieldTaskSummary, t.Summary)
	return b.Bytes()
}

type TaskContext struct {
	Tasks        []Task
	ActiveTaskID string
}

func (tc TaskContext) Marshal() []byte {
	b := NewBuilder()
	for _, t := range tc.Tasks {
		b.AppendMessage(fieldTaskContextTasks, t.Marshal())
	}
	b.AppendString(fieldTaskContextActiveTaskID, tc.ActiveTaskID)
	return b.Bytes()
}

type ActiveRuleFile struct {
	FilePath string
	Content  string
}

type ProjectRule struct {
	RootPath        string
	ActiveRuleFiles []ActiveRuleFile
}

type InputContext struct {
	Pwd          string
	Home         string
	Platform     string
	ShellName    string
	ShellVersion string
	Seconds      int64
	Nanos        int64
	ProjectRules []ProjectRule
}

func (c InputContext) Marshal() []byte {
	b := NewBuilder()

	db := NewBuilder()
	db.AppendString(fieldDirectoryPwd, c.Pwd)
	db.AppendString(fieldDirectoryHome, c.Home)
	b.AppendMessage(fieldContextDirectory, db.Bytes())

	ob := NewBuilder()
	ob.AppendString(fieldOSPlatform, c.Platform)
	b.AppendMessage(fieldContextOperatingSystem, ob.Bytes())

	sb := NewBuilder()
	sb.AppendString(fieldShellName, c.ShellName)
	sb.AppendString(fieldShellVersion, c.ShellVersion)
	b.AppendMessage(fieldContextShell, sb.Bytes())

	tb := NewBuilder()
	tb.AppendInt64(fieldTimeSeconds, c.Seconds)
	tb.AppendInt64(fieldTimeNanos, c.Nanos)
	b.AppendMessage(fieldContextCurrentTime, tb.Bytes())

	for _, pr := range c.ProjectRules {
		prb := NewBuilder()
		prb.AppendString(fieldProjectRulePath, pr.RootPath)
		for _, rf := range pr.ActiveRuleFiles {
			rfb := NewBuilder()
			rfb.AppendString(fieldRuleFilePath, rf.FilePath)
			rfb.AppendString(fieldRuleFileContent, rf.Content)
			prb.AppendMessage(fieldProjectRuleRuleFiles, rfb.Bytes())
		}
		b.AppendMessage(fieldContextProjectRules, prb.Bytes())
	}
	return b.Bytes()
}

type UserInputEntry struct {
	UserQuery      string
	ToolCallResult *ToolCallResult
}

type UserInputs struct {
	Inputs []UserInputEntry
}

func (u UserInputs) Marshal() []byte {
	b := NewBuilder()
	for _, in := range u.Inputs {
		eb := NewBuilder()
		if in.ToolCallResult != nil {
			eb.AppendMessage(fieldUserInputEntryToolResult, in.ToolCallResult.Marshal())
		} else {
			eb.AppendString(fieldUserInputEntryQuery, in.UserQuery)
		}
		b.AppendMessage(fieldUserInputsInputs, eb.Bytes())
	}
	return b.Bytes()
}

type Input struct {
	Context    InputContext
	UserInputs UserInputs
}

func (i Input) Marshal() []byte {
	b := NewBuilder()
	b.AppendMessage(fieldInputContext, i.Context.Marshal())
	b.AppendMessage(fieldInputUserInputs, i.UserInputs.Marshal())
	return b.Bytes()
}

type Settings struct {
	Model                     string
	RulesEnabled              bool
	SupportsParallelToolCalls bool
	PlanningEnabled           bool
	SupportedTools            []string
}

func (s Settings) Marshal() []byte {
	b := NewBuilder()
	b.AppendString(fieldSettingsModel, s.Model)
	b.AppendBool(fieldSettingsRulesEnabled, s.RulesEnabled)
	b.AppendBool(fieldSettingsParallelTool, s.SupportsParallelToolCalls)
	b.AppendBool(fieldSettingsPlanning, s.PlanningEnabled)
	for _, t := range s.SupportedTools {
		b.AppendString(fieldSettingsSupportedTools, t)
	}
	return b.Bytes()
}

type Metadata struct {
	ConversationID string
}

func (m Metadata) Marshal() []byte {
	b := NewBuilder()
	b.AppendString(fieldMetadataConversationID, m.ConversationID)
	return b.Bytes()
}

type Request struct {
	TaskContext TaskContext
	Input       Input
	Settings    Settings
	Metadata    Metadata
}

func (r Request) Marshal() []byte {
	b := NewBuilder()
	b.AppendMessage(fieldRequestTaskContext, r.TaskContext.Marshal())
	b.AppendMessage(fieldRequestInput, r.Input.Marshal())
	b.AppendMessage(fieldRequestSettings, r.Settings.Marshal())
	b.AppendMessage(fieldRequestMetadata, r.Metadata.Marshal())
	return b.Bytes()
}

// --- Response-side domain types ---

type InitEvent struct {
	ConversationID string
	RequestID      string
}

type DecodedTaskMessage struct {
	ID             string
	UserQuery      string
	AgentText      string
	AgentReasoning string
	ToolCall       *DecodedToolCall
}

type DecodedToolCall struct {
	ID       string
	WarpType string
	// RawArgs carries the tool-type-specific nested message re-encoded as a
	// JSON-compatible map by response.go's tool-specific decoders.
	Raw RawMessage
}

// RunShellCommand decodes the run_shell_command payload, ok reporting
// whether the tool call actually carried one.
func (t *DecodedToolCall) RunShellCommand() (command string, isReadOnly, isRisky bool, ok bool) {
	sub, found := t.Raw.Message(fieldToolCallRunShellCommand)
	if !found {
		return "", false, false, false
	}
	command, _ = sub.String(fieldRunShellCommandCommand)
	isReadOnly, _ = sub.Bool(fieldRunShellCommandIsReadOnly)
	isRisky, _ = sub.Bool(fieldRunShellCommandIsRisky)
	return command, isReadOnly, isRisky, true
}

// ReadFiles decodes the read_files payload's file name list.
func (t *DecodedToolCall) ReadFiles() []string {
	sub, ok := t.Raw.Message(fieldToolCallReadFiles)
	if !ok {
		return nil
	}
	var out []string
	for _, f := range sub.Messages(fieldReadFilesFiles) {
		if name, ok := f.String(fieldReadFileName); ok {
			out = append(out, name)
		}
	}
	return out
}

// ApplyFileDiffs decodes the apply_file_diffs payload into new-file writes
// and search/replace diffs.
func (t *DecodedToolCall) ApplyFileDiffs() (newFiles []NewFile, diffs []Diff) {
	sub, ok := t.Raw.Message(fieldToolCallApplyFileDiffs)
	if !ok {
		return nil, nil
	}
	for _, nf := range sub.Messages(fieldApplyFileDiffsNewFiles) {
		path, _ := nf.String(fieldNewFilePath)
		content, _ := nf.String(fieldNewFileContent)
		newFiles = append(newFiles, NewFile{FilePath: path, Content: content})
	}
	for _, d := range sub.Messages(fieldApplyFileDiffsDiffs) {
		path, _ := d.String(fieldDiffFilePath)
		search, _ := d.String(fieldDiffSearch)
		replace, _ := d.String(fieldDiffReplace)
		diffs = append(diffs, Diff{FilePath: path, Search: search, Replace: replace})
	}
	return newFiles, diffs
}

// Grep decodes the grep payload.
func (t *DecodedToolCall) Grep() (queries []string, path string) {
	sub, ok := t.Raw.Message(fieldToolCallGrep)
	if !ok {
		return nil, ""
	}
	queries = sub.Strings(fieldGrepQueries)
	path, _ = sub.String(fieldGrepPath)
	return queries, path
}

// FileGlob decodes the file_glob_v2 payload's pattern list.
func (t *DecodedToolCall) FileGlob() []string {
	sub, ok := t.Raw.Message(fieldToolCallFileGlobV2)
	if !ok {
		return nil
	}
	return sub.Strings(fieldGlobPatterns)
}

// CallMcpTool decodes the call_mcp_tool payload.
func (t *DecodedToolCall) CallMcpTool() (name, argsJSON string) {
	sub, ok := t.Raw.Message(fieldToolCallCallMcpTool)
	if !ok {
		return "", ""
	}
	name, _ = sub.String(fieldMcpName)
	argsJSON, _ = sub.String(fieldMcpArgs)
	return name, argsJSON
}

type ClientAction struct {
	AppendText      string
	AppendReasoning bool
	HasAppend       bool
	AddedMessages   []DecodedTaskMessage
	UpdatedMessage  *DecodedTaskMessage
	CreatedTaskID   string
	StatusTaskID    string
	Status          string
}

type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheReadInputTokens     int64
	CacheCreationInputTokens int64
}

type FinishedEvent struct {
	Reason     string
	TokenUsage []TokenUsage
}

type ResponseEvent struct {
	Init          *InitEvent
	ClientActions []ClientAction
	Finished      *FinishedEvent
}

func decodeTaskMessage(raw RawMessage) DecodedTaskMessage {
	var out DecodedTaskMessage
	out.ID, _ = raw.String(fieldTaskMessageID)
	if uq, ok := raw.Message(fieldTaskMessageUserQuery); ok {
		out.UserQuery, _ = uq.String(fieldUserQueryText)
	}
	if ao, ok := raw.Message(fieldTaskMessageAgentOutput); ok {
		out.AgentText, _ = ao.String(fieldAgentOutputText)
		out.AgentReasoning, _ = ao.String(fieldAgentOutputReasoning)
	}
	if tc, ok := raw.Message(fieldTaskMessageToolCall); ok {
		id, _ := tc.String(fieldToolCallID)
		name, _ := tc.String(fieldToolCallName)
		out.ToolCall = &DecodedToolCall{ID: id, WarpType: name, Raw: tc}
	}
	return out
}

// --- test-fixture encoders for the response side, used by this package's
// and the warp package's tests to build frames without the upstream. ---

// EncodeInitEvent builds a ResponseEvent carrying only an init frame.
func EncodeInitEvent(conversationID, requestID string) []byte {
	init := NewBuilder()
	init.AppendString(fieldInitConversationID, conversationID)
	init.AppendString(fieldInitRequestID, requestID)
	b := NewBuilder()
	b.AppendMessage(fieldEventInit, init.Bytes())
	return b.Bytes()
}

// EncodeAppendTextEvent builds a ResponseEvent carrying a single
// append_to_message_content action with an agent_output text or reasoning
// field, per isReasoning.
func EncodeAppendTextEvent(text string, isReasoning bool) []byte {
	ao := NewBuilder()
	if isReasoning {
		ao.AppendString(fieldAgentOutputReasoning, text)
	} else {
		ao.AppendString(fieldAgentOutputText, text)
	}
	msg := NewBuilder()
	msg.AppendMessage(fieldTaskMessageAgentOutput, ao.Bytes())
	action := NewBuilder()
	action.AppendMessage(fieldAppendContentMessage, msg.Bytes())
	ca := NewBuilder()
	ca.AppendMessage(fieldActionAppendContent, action.Bytes())
	b := NewBuilder()
	b.AppendMessage(fieldEventClientActions, ca.Bytes())
	return b.Bytes()
}

// EncodeAddToolCallEvent builds a ResponseEvent carrying an
// add_messages_to_task action with a single tool_call message.
func EncodeAddToolCallEvent(id, warpType string, payload []byte, payloadField uint32) []byte {
	tc := NewBuilder()
	tc.AppendString(fieldToolCallID, id)
	tc.AppendString(fieldToolCallName, warpType)
	tc.AppendMessage(payloadField, payload)

	msg := NewBuilder()
	msg.AppendMessage(fieldTaskMessageToolCall, tc.Bytes())

	addMsgs := NewBuilder()
	addMsgs.AppendMessage(fieldAddMessagesMessages, msg.Bytes())

	action := NewBuilder()
	action.AppendMessage(fieldActionAddMessages, addMsgs.Bytes())

	ca := NewBuilder()
	ca.AppendMessage(fieldClientActionsActions, action.Bytes())

	b := NewBuilder()
	b.AppendMessage(fieldEventClientActions, ca.Bytes())
	return b.Bytes()
}

// RunShellCommandPayload encodes a run_shell_command nested message body,
// for use with EncodeAddToolCallEvent's payload/payloadField arguments.
func RunShellCommandPayload(command string, isReadOnly, isRisky bool) ([]byte, uint32) {
	b := NewBuilder()
	b.AppendString(fieldRunShellCommandCommand, command)
	b.AppendBool(fieldRunShellCommandIsReadOnly, isReadOnly)
	b.AppendBool(fieldRunShellCommandIsRisky, isRisky)
	return b.Bytes(), fieldToolCallRunShellCommand
}

// ReadFilesPayload encodes a read_files nested message body.
func ReadFilesPayload(files ...string) ([]byte, uint32) {
	b := NewBuilder()
	for _, f := range files {
		fb := NewBuilder()
		fb.AppendString(fieldReadFileName, f)
		b.AppendMessage(fieldReadFilesFiles, fb.Bytes())
	}
	return b.Bytes(), fieldToolCallReadFiles
}

// ApplyFileDiffsPayload encodes an apply_file_diffs nested message body.
func ApplyFileDiffsPayload(newFiles []NewFile, diffs []Diff) ([]byte, uint32) {
	b := NewBuilder()
	for _, nf := range newFiles {
		nb := NewBuilder()
		nb.AppendString(fieldNewFilePath, nf.FilePath)
		nb.AppendString(fieldNewFileContent, nf.Content)
		b.AppendMessage(fieldApplyFileDiffsNewFiles, nb.Bytes())
	}
	for _, d := range diffs {
		db := NewBuilder()
		db.AppendString(fieldDiffFilePath, d.FilePath)
		db.AppendString(fieldDiffSearch, d.Search)
		db.AppendString(fieldDiffReplace, d.Replace)
		b.AppendMessage(fieldApplyFileDiffsDiffs, db.Bytes())
	}
	return b.Bytes(), fieldToolCallApplyFileDiffs
}

// GrepPayload encodes a grep nested message body.
func GrepPayload(path string, queries ...string) ([]byte, uint32) {
	b := NewBuilder()
	for _, q := range queries {
		b.AppendString(fieldGrepQueries, q)
	}
	b.AppendString(fieldGrepPath, path)
	return b.Bytes(), fieldToolCallGrep
}

// FileGlobPayload encodes a file_glob_v2 nested message body.
func FileGlobPayload(patterns ...string) ([]byte, uint32) {
	b := NewBuilder()
	for _, p := range patterns {
		b.AppendString(fieldGlobPatterns, p)
	}
	return b.Bytes(), fieldToolCallFileGlobV2
}

// CallMcpToolPayload encodes a call_mcp_tool nested message body.
func CallMcpToolPayload(name, argsJSON string) ([]byte, uint32) {
	b := NewBuilder()
	b.AppendString(fieldMcpName, name)
	b.AppendString(fieldMcpArgs, argsJSON)
	return b.Bytes(), fieldToolCallCallMcpTool
}

// EncodeFinishedEvent builds a ResponseEvent carrying a finished frame with
// the given reason and token usages.
func EncodeFinishedEvent(reason string, usages []TokenUsage) []byte {
	fin := NewBuilder()
	fin.AppendString(fieldFinishedReason, reason)
	for _, u := range usages {
		ub := NewBuilder()
		ub.AppendInt64(fieldUsageInput, u.InputTokens)
		ub.AppendInt64(fieldUsageOutput, u.OutputTokens)
		ub.AppendInt64(fieldUsageCacheRead, u.CacheReadInputTokens)
		ub.AppendInt64(fieldUsageCacheCreation, u.CacheCreationInputTokens)
		fin.AppendMessage(fieldFinishedTokenUsage, ub.Bytes())
	}
	b := NewBuilder()
	b.AppendMessage(fieldEventFinished, fin.Bytes())
	return b.Bytes()
}

// DecodeResponseEvent decodes one base64-decoded Warp ResponseEvent frame.
func DecodeResponseEvent(b []byte) (*ResponseEvent, error) {
	raw, err := DecodeRaw(b)
	if err != nil {
		return nil, err
	}
	ev := &ResponseEvent{}

	if init, ok := raw.Message(fieldEventInit); ok {
		convID, _ := init.String(fieldInitConversationID)
		reqID, _ := init.String(fieldInitRequestID)
		ev.Init = &InitEvent{ConversationID: convID, RequestID: reqID}
	}

	if ca, ok := raw.Message(fieldEventClientActions); ok {
		for _, actionRaw := range ca.Messages(fieldClientActionsActions) {
			var action ClientAction
			if appendMsg, ok := actionRaw.Message(fieldActionAppendContent); ok {
				if m, ok := appendMsg.Message(fieldAppendContentMessage); ok {
					decoded := decodeTaskMessage(m)
					action.HasAppend = true
					if decoded.AgentReasoning != "" {
						action.AppendReasoning = true
						action.AppendText = decoded.AgentReasoning
					} else {
						action.AppendText = decoded.AgentText
					}
				}
			}
			if addMsgs, ok := actionRaw.Message(fieldActionAddMessages); ok {
				for _, m := range addMsgs.Messages(fieldAddMessagesMessages) {
					action.AddedMessages = append(action.AddedMessages, decodeTaskMessage(m))
				}
			}
			if upd, ok := actionRaw.Message(fieldActionUpdateTaskMsg); ok {
				if m, ok := upd.Message(fieldUpdateTaskMsgMessage); ok {
					decoded := decodeTaskMessage(m)
					action.UpdatedMessage = &decoded
				}
			}
			if created, ok := actionRaw.Message(fieldActionCreateTask); ok {
				action.CreatedTaskID, _ = created.String(fieldCreateTaskTaskID)
			}
			if status, ok := actionRaw.Message(fieldActionUpdateTaskStatus); ok {
				action.StatusTaskID, _ = status.String(fieldUpdateStatusTaskID)
				action.Status, _ = status.String(fieldUpdateStatusStatus)
			}
			ev.ClientActions = append(ev.ClientActions, action)
		}
	}

	if fin, ok := raw.Message(fieldEventFinished); ok {
		f := &FinishedEvent{}
		f.Reason, _ = fin.String(fieldFinishedReason)
		for _, u := range fin.Messages(fieldFinishedTokenUsage) {
			var tu TokenUsage
			tu.InputTokens, _ = u.Int64(fieldUsageInput)
			tu.OutputTokens, _ = u.Int64(fieldUsageOutput)
			tu.CacheReadInputTokens, _ = u.Int64(fieldUsageCacheRead)
			tu.CacheCreationInputTokens, _ = u.Int64(fieldUsageCacheCreation)
			f.TokenUsage = append(f.TokenUsage, tu)
		}
		ev.Finished = f
	}

	return ev, nil
}

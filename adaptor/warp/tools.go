package warp

import "strings"

// canonicalToWarpType maps a canonical tool name onto Warp's fixed tool-type
// enum. Names not present in the table (including mcp__* tools) fall back to
// CALL_MCP_TOOL.
var canonicalToWarpType = map[string]string{
	"Bash":  "RUN_SHELL_COMMAND",
	"Read":  "READ_FILES",
	"Write": "APPLY_FILE_DIFFS",
	"Edit":  "APPLY_FILE_DIFFS",
	"Grep":  "GREP",
	"Glob":  "FILE_GLOB_V2",
}

// warpTypeToCanonical is the reverse of canonicalToWarpType, used when
// decoding a Warp tool_call back into a canonical tool_use block. Since
// both Write and Edit collapse onto APPLY_FILE_DIFFS, the reverse mapping
// can't recover the original name from the type alone; callers that need it
// disambiguate on which APPLY_FILE_DIFFS payload shape (new_files vs diffs)
// the event actually carries.
var warpTypeToCanonical = map[string]string{
	"RUN_SHELL_COMMAND": "Bash",
	"READ_FILES":        "Read",
	"GREP":              "Grep",
	"FILE_GLOB_V2":      "Glob",
}

// ResolveWarpToolType returns the Warp tool type for a canonical tool name,
// defaulting unknown and mcp__-prefixed names to CALL_MCP_TOOL.
func ResolveWarpToolType(canonicalName string) string {
	if t, ok := canonicalToWarpType[canonicalName]; ok {
		return t
	}
	return "CALL_MCP_TOOL"
}

// CanonicalToolName recovers a canonical name for a decoded Warp tool call.
// isDiff distinguishes APPLY_FILE_DIFFS payloads carrying new_files (Write)
// from those carrying diffs (Edit); it is ignored for every other type.
func CanonicalToolName(warpType string, mcpName string, isNewFile bool) string {
	switch warpType {
	case "APPLY_FILE_DIFFS":
		if isNewFile {
			return "Write"
		}
		return "Edit"
	case "CALL_MCP_TOOL":
		if mcpName != "" {
			return mcpName
		}
		return "mcp__unknown"
	default:
		if name, ok := warpTypeToCanonical[warpType]; ok {
			return name
		}
		return warpType
	}
}

// safeCommandPrefixes lists command names whose invocations are treated as
// read-only regardless of arguments.
var safeCommandPrefixes = []string{
	"ls", "cat", "head", "tail", "grep", "find", "pwd", "echo", "wc", "tree",
	"file", "stat", "du", "df", "which", "whereis", "type", "env", "printenv",
	"whoami", "id", "date", "uname", "hostname",
}

var safeGitSubcommands = []string{"status", "log", "diff", "show", "branch", "remote", "tag"}
var safeNpmSubcommands = []string{"list", "ls", "view", "info", "search"}

// riskyPatterns are substrings whose presence in a shell command marks it
// risky, regardless of the leading command word.
var riskyPatterns = []string{
	"rm -rf", "sudo", "chmod 777", "chown", "mkfs", "dd ", "curl", "| sh",
	"kill -9", "shutdown", "reboot", "> /dev/", ">> /dev/",
}

// IsReadOnlyCommand reports whether command's leading program is on the
// curated safe list (plain invocation, or a recognised read-only git/npm
// subcommand).
func IsReadOnlyCommand(command string) bool {
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) == 0 {
		return false
	}
	head := fields[0]
	for _, safe := range safeCommandPrefixes {
		if head == safe {
			return true
		}
	}
	if head == "git" && len(fields) > 1 {
		for _, sub := range safeGitSubcommands {
			if fields[1] == sub {
				return true
			}
		}
	}
	if head == "npm" && len(fields) > 1 {
		for _, sub := range safeNpmSubcommands {
			if fields[1] == sub {
				return true
			}
		}
	}
	return false
}

// IsRiskyCommand reports whether command matches any destructive/dangerous
// pattern. Risky and read-only are not mutually exclusive checks upstream;
// callers evaluate both independently per the command text.
func IsRiskyCommand(command string) bool {
	lower := strings.ToLower(command)
	for _, pattern := range riskyPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

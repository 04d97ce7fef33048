package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/bazelment/agenthub/amp"
	"github.com/bazelment/agenthub/claude"
	"github.com/bazelment/agenthub/codex"
	"github.com/bazelment/agenthub/schema"
	"github.com/bazelment/agenthub/session"
)

// family bundles everything agent-specific about a subprocess agent: how to
// launch it, how to read its output, and how to write messages and replies
// to its stdin. The process adapter itself stays agent-agnostic.
type family struct {
	bin  string
	args []string

	convert func(line []byte) schema.Conversion

	encodeSend func(text string) ([]byte, error)

	// Reply encoders are nil for agents without the corresponding
	// interaction channel.
	encodeQuestionReply   func(nativeID string, payload json.RawMessage, answer string) ([]byte, error)
	encodePermissionReply func(nativeID string, payload json.RawMessage, decision string) ([]byte, error)
}

// subprocessFamily builds the family for one session. Families are built
// per session because some encoders carry per-session state (the codex
// request id counter).
func subprocessFamily(p session.Params, cfg Config) (*family, error) {
	switch p.Agent {
	case schema.AgentClaude:
		return claudeFamily(p, cfg), nil
	case schema.AgentCodex:
		return codexFamily(p, cfg), nil
	case schema.AgentAmp:
		return ampFamily(p, cfg), nil
	default:
		return nil, fmt.Errorf("agent %s does not run as a subprocess", p.Agent)
	}
}

func claudeFamily(p session.Params, cfg Config) *family {
	args := []string{
		"--input-format", "stream-json",
		"--output-format", "stream-json",
		"--verbose",
		"--permission-prompt-tool", "stdio",
	}
	if p.AgentMode != "" {
		args = append(args, "--mode", p.AgentMode)
	}
	if p.Model != "" {
		args = append(args, "--model", p.Model)
	}
	if p.PermissionMode != "" {
		args = append(args, "--permission-mode", p.PermissionMode)
	}
	return &family{
		bin:        cfg.binary(schema.AgentClaude, "claude"),
		args:       args,
		convert:    claude.Convert,
		encodeSend: claude.EncodeUserMessage,
		encodeQuestionReply: func(nativeID string, payload json.RawMessage, answer string) ([]byte, error) {
			return claude.EncodeQuestionReply(nativeID, payload, answer)
		},
		encodePermissionReply: func(nativeID string, payload json.RawMessage, decision string) ([]byte, error) {
			return claude.EncodePermissionReply(nativeID, payload, decision)
		},
	}
}

func codexFamily(p session.Params, cfg Config) *family {
	args := []string{"app-server"}
	if p.AgentMode != "" {
		args = append(args, "--profile", p.AgentMode)
	}
	if p.Model != "" {
		args = append(args, "--model", p.Model)
	}
	enc := &codex.Encoder{}
	return &family{
		bin:        cfg.binary(schema.AgentCodex, "codex"),
		args:       args,
		convert:    codex.Convert,
		encodeSend: enc.EncodeUserMessage,
		encodePermissionReply: func(nativeID string, _ json.RawMessage, decision string) ([]byte, error) {
			return codex.EncodePermissionReply(nativeID, decision)
		},
	}
}

func ampFamily(p session.Params, cfg Config) *family {
	args := []string{"--execute", "--stream-json", "--stream-json-input"}
	if p.AgentMode != "" {
		args = append(args, "--mode", p.AgentMode)
	}
	return &family{
		bin:        cfg.binary(schema.AgentAmp, "amp"),
		args:       args,
		convert:    amp.Convert,
		encodeSend: amp.EncodeUserMessage,
	}
}

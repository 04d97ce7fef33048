package runtime

import (
	"log/slog"
	"time"

	"github.com/bazelment/agenthub/opencode"
	"github.com/bazelment/agenthub/schema"
	"github.com/bazelment/agenthub/session"
)

// Config holds runtime-wide adapter settings.
type Config struct {
	// OpenCodeURL is the base URL of the OpenCode backend. Empty means
	// opencode.DefaultBaseURL.
	OpenCodeURL string

	// Binaries overrides the default binary name per agent, e.g. to pin
	// an absolute path.
	Binaries map[schema.Agent]string

	// StopGrace is the SIGTERM-to-SIGKILL grace period for subprocess
	// agents. Zero means DefaultStopGrace.
	StopGrace time.Duration
}

func (c Config) binary(agent schema.Agent, fallback string) string {
	if bin, ok := c.Binaries[agent]; ok && bin != "" {
		return bin
	}
	return fallback
}

// NewFactory returns the session.AdapterFactory wiring each agent family to
// its runtime strategy: subprocess for claude/codex/amp, proxy for
// opencode, in-process for the mock.
func NewFactory(cfg Config, logger *slog.Logger) session.AdapterFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(s *session.Session, p session.Params) (session.Adapter, error) {
		switch p.Agent {
		case schema.AgentMock:
			return newMockAdapter(s), nil
		case schema.AgentOpenCode:
			client := opencode.NewClient(cfg.OpenCodeURL)
			return newProxyAdapter(client, s, p.AgentMode, logger), nil
		default:
			f, err := subprocessFamily(p, cfg)
			if err != nil {
				return nil, err
			}
			return newProcessAdapter(p, f, s, cfg, logger), nil
		}
	}
}

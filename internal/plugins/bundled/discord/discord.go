// Package discord is a bundled demonstration connector plugin: it wraps
// bwmarrin/discordgo just far enough to expose a send-message tool and a
// status command, grounded in the teacher's discordSession narrow-interface
// idiom (internal/channels/discord/adapter.go) but without reimplementing
// Discord's full feature set (spec.md §C.3 "thin").
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/slashbot/slashbot/internal/kernel"
	"github.com/slashbot/slashbot/internal/plugins"
	"github.com/slashbot/slashbot/pkg/pluginsdk"
)

// ManifestID identifies this plugin in diagnostics and config entries.
const ManifestID = "bundled.discord"

// session is the narrow surface this plugin needs from *discordgo.Session,
// trimmed from the teacher's discordSession to what a send-message tool
// and connection lifecycle actually use.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Config configures the plugin. Token is required for Activate to succeed.
type Config struct {
	Token string
}

// Plugin wires a Discord bot session into the plugin substrate: a tool to
// send channel messages and a command to report connection status.
type Plugin struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	session session
}

// New constructs an unactivated Plugin. Call Definition to obtain the
// plugins.Definition for registration with a Loader.
func New(cfg Config, logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Plugin{cfg: cfg, logger: logger.With("plugin", ManifestID)}
}

// Definition returns the plugins.Definition the Loader activates.
func (p *Plugin) Definition() *plugins.Definition {
	return &plugins.Definition{
		Manifest: &pluginsdk.Manifest{
			ID:          ManifestID,
			Name:        "Discord",
			Version:     "0.1.0",
			Description: "Send and receive messages via a Discord bot",
		},
		Register:   p.register,
		Activate:   p.activate,
		Deactivate: p.deactivate,
	}
}

func (p *Plugin) register(api *plugins.API) error {
	api.RegisterTool("discord.sendMessage", kernel.ToolHandler(p.sendMessageTool))
	api.RegisterCommand("discord.status", kernel.CommandHandler(p.statusCommand))
	return nil
}

func (p *Plugin) activate(ctx context.Context) error {
	if p.cfg.Token == "" {
		return fmt.Errorf("discord: token is required")
	}

	dg, err := discordgo.New("Bot " + p.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: create session: %w", err)
	}

	if err := dg.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}

	p.mu.Lock()
	p.session = dg
	p.mu.Unlock()

	p.logger.Info("discord session opened")
	return nil
}

func (p *Plugin) deactivate(ctx context.Context) error {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}

type sendMessageArgs struct {
	ChannelID string `json:"channelId"`
	Content   string `json:"content"`
}

func (p *Plugin) sendMessageTool(ctx context.Context, args json.RawMessage) (kernel.ToolResult, error) {
	var req sendMessageArgs
	if err := json.Unmarshal(args, &req); err != nil {
		return kernel.ToolResult{
			OK:    false,
			Error: &kernel.ToolError{Code: "INVALID_ARGS", Message: err.Error()},
		}, nil
	}
	if req.ChannelID == "" || req.Content == "" {
		return kernel.ToolResult{
			OK:    false,
			Error: &kernel.ToolError{Code: "INVALID_ARGS", Message: "channelId and content are required"},
		}, nil
	}

	p.mu.Lock()
	s := p.session
	p.mu.Unlock()
	if s == nil {
		return kernel.ToolResult{
			OK:    false,
			Error: &kernel.ToolError{Code: "NOT_CONNECTED", Message: "discord session is not active"},
		}, nil
	}

	msg, err := s.ChannelMessageSend(req.ChannelID, req.Content)
	if err != nil {
		return kernel.ToolResult{
			OK:    false,
			Error: &kernel.ToolError{Code: "SEND_FAILED", Message: err.Error()},
		}, nil
	}

	return kernel.ToolResult{
		OK:      true,
		ForUser: fmt.Sprintf("Sent to channel %s", req.ChannelID),
		ForLLM:  fmt.Sprintf("discord message %s sent to channel %s", msg.ID, req.ChannelID),
	}, nil
}

func (p *Plugin) statusCommand(ctx context.Context, args []string) int {
	p.mu.Lock()
	connected := p.session != nil
	p.mu.Unlock()

	if connected {
		fmt.Println("discord: connected")
	} else {
		fmt.Println("discord: not connected")
	}
	return 0
}

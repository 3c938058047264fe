// Package telegram is a bundled demonstration connector plugin: it wraps
// go-telegram/bot just far enough to expose a send-message tool and a
// status command, grounded in the teacher's BotClient narrow-interface
// idiom (internal/channels/telegram/bot_client.go) but without
// reimplementing Telegram's full feature set (spec.md §C.3 "thin").
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/slashbot/slashbot/internal/kernel"
	"github.com/slashbot/slashbot/internal/plugins"
	"github.com/slashbot/slashbot/pkg/pluginsdk"
)

// ManifestID identifies this plugin in diagnostics and config entries.
const ManifestID = "bundled.telegram"

// client is the narrow surface this plugin needs from *bot.Bot. Mirrors
// the teacher's BotClient, trimmed to what a send-message tool and a
// long-polling receiver actually use.
type client interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error)
	Start(ctx context.Context)
}

type realClient struct{ bot *tgbot.Bot }

func (r realClient) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error) {
	return r.bot.SendMessage(ctx, params)
}

func (r realClient) Start(ctx context.Context) { r.bot.Start(ctx) }

// Config configures the plugin. Token is required for Activate to succeed.
type Config struct {
	Token string
}

// Plugin wires a Telegram bot client into the plugin substrate: a tool to
// send messages and a command to report connection status.
type Plugin struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	client client
	cancel context.CancelFunc
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
			Name:        "Telegram",
			Version:     "0.1.0",
			Description: "Send and receive messages via a Telegram bot",
		},
		Register:   p.register,
		Activate:   p.activate,
		Deactivate: p.deactivate,
	}
}

func (p *Plugin) register(api *plugins.API) error {
	api.RegisterTool("telegram.sendMessage", kernel.ToolHandler(p.sendMessageTool))
	api.RegisterToolSchema("telegram.sendMessage", json.RawMessage(`{
		"type": "object",
		"required": ["chatId", "text"],
		"properties": {
			"chatId": {"type": "integer"},
			"text": {"type": "string", "minLength": 1}
		}
	}`))
	api.RegisterCommand("telegram.status", kernel.CommandHandler(p.statusCommand))
	return nil
}

// activate creates the bot client and starts long-polling in the
// background; the returned error only reflects bot construction, since
// Start blocks until the Activate-scoped context is cancelled by Deactivate.
func (p *Plugin) activate(ctx context.Context) error {
	if p.cfg.Token == "" {
		return fmt.Errorf("telegram: token is required")
	}

	b, err := tgbot.New(p.cfg.Token)
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.client = realClient{bot: b}
	p.cancel = cancel
	p.mu.Unlock()

	go func() {
		p.logger.Info("telegram bot starting long polling")
		p.client.Start(runCtx)
		p.logger.Info("telegram bot stopped")
	}()

	return nil
}

func (p *Plugin) deactivate(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.client = nil
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

type sendMessageArgs struct {
	ChatID int64  `json:"chatId"`
	Text   string `json:"text"`
}

func (p *Plugin) sendMessageTool(ctx context.Context, args json.RawMessage) (kernel.ToolResult, error) {
	var req sendMessageArgs
	if err := json.Unmarshal(args, &req); err != nil {
		return kernel.ToolResult{
			OK:    false,
			Error: &kernel.ToolError{Code: "INVALID_ARGS", Message: err.Error()},
		}, nil
	}
	if req.ChatID == 0 || req.Text == "" {
		return kernel.ToolResult{
			OK:    false,
			Error: &kernel.ToolError{Code: "INVALID_ARGS", Message: "chatId and text are required"},
		}, nil
	}

	p.mu.Lock()
	c := p.client
	p.mu.Unlock()
	if c == nil {
		return kernel.ToolResult{
			OK:    false,
			Error: &kernel.ToolError{Code: "NOT_CONNECTED", Message: "telegram bot is not active"},
		}, nil
	}

	msg, err := c.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: req.ChatID, Text: req.Text})
	if err != nil {
		return kernel.ToolResult{
			OK:    false,
			Error: &kernel.ToolError{Code: "SEND_FAILED", Message: err.Error()},
		}, nil
	}

	return kernel.ToolResult{
		OK:      true,
		ForUser: fmt.Sprintf("Sent to chat %d", req.ChatID),
		ForLLM:  fmt.Sprintf("telegram message %d sent to chat %d", msg.ID, req.ChatID),
	}, nil
}

func (p *Plugin) statusCommand(ctx context.Context, args []string) int {
	p.mu.Lock()
	connected := p.client != nil
	p.mu.Unlock()

	if connected {
		fmt.Println("telegram: connected")
	} else {
		fmt.Println("telegram: not connected")
	}
	return 0
}

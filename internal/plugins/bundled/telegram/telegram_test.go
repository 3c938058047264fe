package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// fakeClient implements client for testing, mirroring the teacher's
// mockBotClient configurable-func style.
type fakeClient struct {
	sendMessageFunc func(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error)
	startCalls      int
}

func (f *fakeClient) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error) {
	return f.sendMessageFunc(ctx, params)
}

func (f *fakeClient) Start(ctx context.Context) { f.startCalls++ }

func TestSendMessageToolRequiresConnection(t *testing.T) {
	p := New(Config{Token: "t"}, nil)

	args, _ := json.Marshal(sendMessageArgs{ChatID: 1, Text: "hi"})
	result, err := p.sendMessageTool(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OK {
		t.Fatalf("expected OK=false with no client connected")
	}
	if result.Error == nil || result.Error.Code != "NOT_CONNECTED" {
		t.Fatalf("expected NOT_CONNECTED error, got %+v", result.Error)
	}
}

func TestSendMessageToolRejectsMissingFields(t *testing.T) {
	p := New(Config{Token: "t"}, nil)
	p.client = &fakeClient{}

	args, _ := json.Marshal(sendMessageArgs{})
	result, err := p.sendMessageTool(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OK || result.Error == nil || result.Error.Code != "INVALID_ARGS" {
		t.Fatalf("expected INVALID_ARGS error, got %+v", result)
	}
}

func TestSendMessageToolSucceeds(t *testing.T) {
	p := New(Config{Token: "t"}, nil)
	p.client = &fakeClient{
		sendMessageFunc: func(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error) {
			if params.ChatID != int64(42) || params.Text != "hello" {
				t.Fatalf("unexpected params: %+v", params)
			}
			return &tgmodels.Message{ID: 7}, nil
		},
	}

	args, _ := json.Marshal(sendMessageArgs{ChatID: 42, Text: "hello"})
	result, err := p.sendMessageTool(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected OK result, got %+v", result)
	}
}

func TestSendMessageToolPropagatesClientError(t *testing.T) {
	p := New(Config{Token: "t"}, nil)
	boom := errors.New("boom")
	p.client = &fakeClient{
		sendMessageFunc: func(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error) {
			return nil, boom
		},
	}

	args, _ := json.Marshal(sendMessageArgs{ChatID: 1, Text: "hi"})
	result, err := p.sendMessageTool(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OK || result.Error == nil || result.Error.Code != "SEND_FAILED" {
		t.Fatalf("expected SEND_FAILED error, got %+v", result)
	}
}

func TestStatusCommandReflectsConnectionState(t *testing.T) {
	p := New(Config{Token: "t"}, nil)
	if code := p.statusCommand(context.Background(), nil); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	p.client = &fakeClient{}
	if code := p.statusCommand(context.Background(), nil); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
}

func TestActivateRequiresToken(t *testing.T) {
	p := New(Config{}, nil)
	if err := p.activate(context.Background()); err == nil {
		t.Fatalf("expected error for missing token")
	}
}

func TestDeactivateWithoutActivateIsSafe(t *testing.T) {
	p := New(Config{Token: "t"}, nil)
	if err := p.deactivate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefinitionExposesManifestAndCallbacks(t *testing.T) {
	p := New(Config{Token: "t"}, nil)
	def := p.Definition()
	if def.Manifest.ID != ManifestID {
		t.Fatalf("unexpected manifest id: %s", def.Manifest.ID)
	}
	if def.Register == nil || def.Activate == nil || def.Deactivate == nil {
		t.Fatalf("expected Register/Activate/Deactivate to be set")
	}
}

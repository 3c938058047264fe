package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slashbot/slashbot/internal/hooks"
)

// messageLifecycleTimeout bounds how long SendMessageLifecycle waits for
// hook dispatch before returning control, per spec.md §4.4's "250 ms race
// timeout" rule. The dispatch itself is never cancelled on timeout — it
// keeps running fire-and-forget.
const messageLifecycleTimeout = 250 * time.Millisecond

// SendMessageLifecycle implements spec.md §4.4's sendMessageLifecycle:
// publish an envelope on the event bus, then dispatch the matching
// lifecycle hook under a race timeout. If the hook dispatch is still
// running when the timeout elapses, a warning is logged and control
// returns immediately; the dispatch completes in the background.
func (k *Kernel) SendMessageLifecycle(ctx context.Context, event, sessionID, agentID string, message any) {
	if k.Bus != nil {
		k.Bus.Publish("lifecycle:"+event, map[string]any{
			"sessionId": sessionID, "agentId": agentID, "message": message,
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		k.Dispatcher.Dispatch(context.Background(), hooks.DomainLifecycle, event, hooks.Payload{
			"sessionId": sessionID, "agentId": agentID, "message": message,
		})
	}()

	select {
	case <-done:
	case <-time.After(messageLifecycleTimeout):
		k.logger.Warn("lifecycle hook dispatch exceeded race timeout, continuing fire-and-forget",
			"event", event, "sessionId", sessionID)
	}
}

// sessionMetadata is the on-disk record startSession/endSession maintain
// per session (spec.md §3 lifecycle note: "writes a metadata file").
type sessionMetadata struct {
	SessionID string     `json:"sessionId"`
	AgentID   string     `json:"agentId,omitempty"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// StartSession implements spec.md §3's session lifecycle: writes a
// metadata file, emits lifecycle:session_start, and dispatches the
// session_start hook. A metadata write failure is logged but never blocks
// lifecycle dispatch.
func (k *Kernel) StartSession(ctx context.Context, sessionID, agentID string) {
	startedAt := time.Now()

	k.mu.Lock()
	k.sessions[sessionID] = startedAt
	k.mu.Unlock()

	if err := k.writeSessionMetadata(sessionID, sessionMetadata{SessionID: sessionID, AgentID: agentID, Status: "active", StartedAt: startedAt}); err != nil {
		k.logger.Warn("session metadata write failed", "sessionId", sessionID, "error", err)
	}

	if k.Metrics != nil {
		k.Metrics.SessionStarted()
	}
	if k.Audit != nil {
		k.Audit.LogSessionStart(ctx, sessionID, agentID)
	}

	k.SendMessageLifecycle(ctx, hooks.EventSessionStart, sessionID, agentID, nil)
}

// EndSession implements the matching teardown half: updates the metadata
// file and emits lifecycle:session_end.
func (k *Kernel) EndSession(ctx context.Context, sessionID, agentID string) {
	k.mu.Lock()
	startedAt, tracked := k.sessions[sessionID]
	delete(k.sessions, sessionID)
	k.mu.Unlock()

	endedAt := time.Now()
	meta := sessionMetadata{SessionID: sessionID, AgentID: agentID, Status: "ended", EndedAt: &endedAt}
	if tracked {
		meta.StartedAt = startedAt
	} else {
		meta.StartedAt = endedAt
	}

	if err := k.writeSessionMetadata(sessionID, meta); err != nil {
		k.logger.Warn("session metadata write failed", "sessionId", sessionID, "error", err)
	}

	var duration time.Duration
	if tracked {
		duration = endedAt.Sub(startedAt)
	}
	if k.Metrics != nil {
		k.Metrics.SessionEnded(duration.Seconds())
	}
	if k.Audit != nil {
		k.Audit.LogSessionEnd(ctx, sessionID, duration)
	}

	k.SendMessageLifecycle(ctx, hooks.EventSessionEnd, sessionID, agentID, nil)
}

// writeSessionMetadata persists meta via the temp-file-plus-rename idiom
// internal/auth.Store uses for its credential document, so a crash mid-write
// never leaves a torn file behind. A blank SessionDir disables persistence
// entirely (non-fatal, per the lifecycle note that metadata writes are
// best-effort).
func (k *Kernel) writeSessionMetadata(sessionID string, meta sessionMetadata) error {
	if k.cfg.SessionDir == "" {
		return nil
	}
	if err := os.MkdirAll(k.cfg.SessionDir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}

	path := filepath.Join(k.cfg.SessionDir, sessionID+".json")
	tmp, err := os.CreateTemp(k.cfg.SessionDir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/slashbot/slashbot/internal/hooks"
)

// RunCommand implements spec.md §4.4's runCommand: dispatch before_command
// / after_command around execution; an unknown or mistyped command writes
// to stderr and returns 1 without running a handler.
func (k *Kernel) RunCommand(ctx context.Context, commandID string, args []string) int {
	before := hooks.Payload{"commandId": commandID, "args": args}
	k.Dispatcher.Dispatch(ctx, hooks.DomainLifecycle, hooks.EventBeforeCommand, before)

	raw, ok := k.Loader.Command(commandID)
	if !ok {
		return k.unknownCommand(commandID, args)
	}
	handler, ok := raw.(CommandHandler)
	if !ok {
		return k.unknownCommand(commandID, args)
	}

	start := time.Now()
	exitCode := k.invokeCommand(ctx, handler, args)
	duration := time.Since(start)

	k.Dispatcher.Dispatch(ctx, hooks.DomainLifecycle, hooks.EventAfterCommand, hooks.Payload{
		"commandId": commandID, "args": args, "exitCode": exitCode,
	})

	if k.Audit != nil {
		k.Audit.LogCommandCompletion(ctx, commandID, "", exitCode, duration)
	}

	return exitCode
}

func (k *Kernel) unknownCommand(commandID string, args []string) int {
	fmt.Fprintf(k.stderr, "slashbot: unknown command %q\n", commandID)
	return 1
}

// invokeCommand calls handler, converting a panic into exit code 1.
func (k *Kernel) invokeCommand(ctx context.Context, handler CommandHandler, args []string) (exitCode int) {
	defer func() {
		if p := recover(); p != nil {
			k.logger.Error("command handler panicked", "panic", p)
			exitCode = 1
		}
	}()
	return handler(ctx, args)
}

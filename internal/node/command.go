package node

import (
	"context"
	"fmt"
)

// Command is an operator request executed on the loop goroutine.
type Command int

const (
	// CommandSuspend releases the broker session and keeps it down.
	CommandSuspend Command = iota + 1

	// CommandResume lets the session reconnect after CommandSuspend.
	CommandResume

	// CommandRepublish republishes every Control entity.
	CommandRepublish
)

// String returns the command name used in logs and the API.
func (c Command) String() string {
	switch c {
	case CommandSuspend:
		return "suspend"
	case CommandResume:
		return "resume"
	case CommandRepublish:
		return "republish"
	default:
		return "unknown"
	}
}

// ParseCommand maps an API name to a Command.
func ParseCommand(s string) (Command, error) {
	for _, c := range []Command{CommandSuspend, CommandResume, CommandRepublish} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Submit queues cmd for the next loop pass. It blocks while the queue is
// full until ctx is done.
func (r *Runtime) Submit(ctx context.Context, cmd Command) error {
	if cmd.String() == "unknown" {
		return fmt.Errorf("%w: %d", ErrUnknownCommand, int(cmd))
	}
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.commands <- cmd:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) drainCommands() {
	for {
		select {
		case cmd := <-r.commands:
			r.execute(cmd)
		default:
			return
		}
	}
}

func (r *Runtime) execute(cmd Command) {
	r.logger.Info("operator command", "command", cmd.String())
	switch cmd {
	case CommandSuspend:
		r.Log("session suspended by operator")
		r.orch.Pump(r.pumpDuration)
		r.orch.SuspendSession()
	case CommandResume:
		r.orch.ResumeSession()
	case CommandRepublish:
		if !r.orch.CoarseReady() {
			r.logger.Warn("republish skipped, session not ready")
			return
		}
		r.orch.Registry().PublishAll()
		r.orch.Pump(r.pumpDuration)
	}
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
)

const (
	leaveTimeout = 5 * time.Second
	eventBuffer  = 64
)

func sessionKey(cmd *cli.Command) (string, error) {
	key := cmd.StringArg("key")
	if key == "" {
		return "", fmt.Errorf("%w: session id or code", shared.ErrMissingArgument)
	}
	return key, nil
}

// SessionCreate creates a session and prints its id and join code.
func (r *Runner) SessionCreate(ctx context.Context, cmd *cli.Command) error {
	resp, err := r.syncClient(cmd).Create(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("session created", "id", resp.SessionID, "code", resp.Code)
	if cmd.Bool("json") {
		return r.writeJSON(resp, cmd.Bool("pretty"))
	}

	r.writePlain("Session: %s\n", resp.SessionID)
	r.writePlain("Code:    %s\n", resp.Code)
	return r.writePlainln("Share the code: nowplaying watch %s", resp.Code)
}

// SessionJoin adds a device to a session and prints the roster.
func (r *Runner) SessionJoin(ctx context.Context, cmd *cli.Command) error {
	key, err := sessionKey(cmd)
	if err != nil {
		return err
	}

	deviceID := cmd.String("device")
	if deviceID == "" {
		deviceID = shared.GenerateDeviceID()
	}
	name := cmd.String("name")
	if name == "" {
		name = shared.DeviceName(deviceID)
	}

	state, err := r.syncClient(cmd).Join(ctx, key, deviceID, name, cmd.Int64("progress"))
	if err != nil {
		return err
	}

	r.logger.Info("joined session", "session", state.ID, "device", deviceID)
	if cmd.Bool("json") {
		return r.writeJSON(state, cmd.Bool("pretty"))
	}

	r.writePlain("Joined as %s (%s)\n\n", name, deviceID)
	return r.writePlain("%s\n", formatter.Session(state, r.clock.Now()))
}

// SessionGet prints a session and its devices.
func (r *Runner) SessionGet(ctx context.Context, cmd *cli.Command) error {
	key, err := sessionKey(cmd)
	if err != nil {
		return err
	}

	state, err := r.syncClient(cmd).Get(ctx, key)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(state, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", formatter.Session(state, r.clock.Now()))
}

// SessionLeave removes a device from a session.
func (r *Runner) SessionLeave(ctx context.Context, cmd *cli.Command) error {
	key, err := sessionKey(cmd)
	if err != nil {
		return err
	}

	deviceID := cmd.String("device")
	if err := r.syncClient(cmd).Leave(ctx, key, deviceID); err != nil {
		return err
	}

	r.logger.Info("device left session", "session", key, "device", deviceID)
	return r.writePlain("✓ %s left %s\n", deviceID, key)
}

// SessionHost pushes the local player's position to a session until interrupted.
//
// Without a key a new session is created first.
func (r *Runner) SessionHost(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.provider(cmd.String("provider"))
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("%w: hosting needs a player; pass --provider spotify or mpd", shared.ErrMissingCredentials)
	}

	client := r.syncClient(cmd)
	key := cmd.StringArg("key")
	if key == "" {
		resp, err := client.Create(ctx)
		if err != nil {
			return err
		}
		key = resp.Code
		r.writePlain("Created session %s (code %s)\n", resp.SessionID, resp.Code)
	}

	events := make(chan tasks.Event, eventBuffer)
	coord, err := tasks.NewCoordinator(client, r.coordinatorConfig(cmd, key, tasks.RoleHost),
		tasks.WithProvider(provider),
		tasks.WithClock(r.clock),
		tasks.WithLogger(r.logger),
		tasks.WithEvents(events),
	)
	if err != nil {
		return err
	}
	return r.runCoordinator(ctx, coord, events, false)
}

// SessionFollow prints the shared position of a session until interrupted.
func (r *Runner) SessionFollow(ctx context.Context, cmd *cli.Command) error {
	key, err := sessionKey(cmd)
	if err != nil {
		return err
	}

	events := make(chan tasks.Event, eventBuffer)
	opts := []tasks.Option{tasks.WithClock(r.clock), tasks.WithLogger(r.logger), tasks.WithEvents(events)}
	provider, err := r.provider(cmd.String("provider"))
	if err != nil {
		return err
	}
	if provider != nil {
		opts = append(opts, tasks.WithProvider(provider))
	}

	coord, err := tasks.NewCoordinator(r.syncClient(cmd), r.coordinatorConfig(cmd, key, tasks.RoleFollower), opts...)
	if err != nil {
		return err
	}
	return r.runCoordinator(ctx, coord, events, true)
}

func (r *Runner) coordinatorConfig(cmd *cli.Command, key string, role tasks.Role) tasks.Config {
	return tasks.Config{
		SessionKey:   key,
		DeviceID:     cmd.String("device"),
		DeviceName:   cmd.String("name"),
		Role:         role,
		HostInterval: r.config.Sync.HostInterval.Duration,
		PollInterval: r.config.Sync.PollInterval.Duration,
	}
}

// runCoordinator starts coord and prints its events until ctx is done.
// Ticks are printed only when ticks is set, once per second of progress.
func (r *Runner) runCoordinator(ctx context.Context, coord *tasks.Coordinator, events <-chan tasks.Event, ticks bool) error {
	if err := coord.Start(ctx); err != nil {
		return err
	}

	lastSecond := int64(-1)
	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
			defer cancel()
			return coord.Stop(stopCtx)
		case ev := <-events:
			switch ev.Kind {
			case tasks.EventTick:
				if !ticks || ev.Position.ProgressMs/1000 == lastSecond {
					continue
				}
				lastSecond = ev.Position.ProgressMs / 1000
				r.writePlain("\r%s / %s  %5.1f%%  ",
					shared.FormatDuration(ev.Position.ProgressMs), shared.FormatDuration(ev.Position.DurationMs), ev.Position.Percent)
			case tasks.EventJoined:
				r.writePlain("%s\n", formatter.Session(ev.State, r.clock.Now()))
			case tasks.EventTrackChanged, tasks.EventTrackEnded, tasks.EventError:
				r.writePlainln("%s", ev.Message)
			default:
				r.logger.Debug("coordinator event", "kind", ev.Kind, "message", ev.Message)
			}
		}
	}
}

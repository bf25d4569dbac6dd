package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"character-studio/backend/internal/workflow"
	"character-studio/backend/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newEventsCommand() *cobra.Command {
	var server, token, statusID string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow editor events from a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required (see adminctl token)")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return followEvents(ctx, server, token, statusID, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&server, "server", "ws://localhost:8081", "Server base URL")
	cmd.Flags().StringVar(&token, "token", "", "Admin access token")
	cmd.Flags().StringVar(&statusID, "status", "", "Only events of this status")
	return cmd
}

func eventsURL(server, token, statusID string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/api/v1/admin/ws"
	q := url.Values{"token": {token}}
	if statusID != "" {
		q.Set("status_id", statusID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// followEvents prints one line per event until ctx ends or the server hangs up
func followEvents(ctx context.Context, server, token, statusID string, out io.Writer) error {
	target, err := eventsURL(server, token, statusID)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connect: %s: %w", resp.Status, err)
		}
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		fmt.Fprintln(out, formatEvent(msg))
	}
}

func formatEvent(msg ws.Message) string {
	var ev workflow.Event
	if err := json.Unmarshal(msg.Content, &ev); err != nil || ev.StatusID == "" {
		return fmt.Sprintf("%s %s", msg.Type, string(msg.Content))
	}
	line := fmt.Sprintf("%s status=%s step=%d", ev.Type, ev.StatusID, ev.Step)
	if ev.Action != "" {
		line += " action=" + ev.Action
	}
	if ev.Scene != nil {
		line += fmt.Sprintf(" scene=%d", *ev.Scene)
	}
	if ev.Message != "" {
		line += fmt.Sprintf(" message=%q", ev.Message)
	}
	return line
}

package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-attend/pkg/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running kiosk's status",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("url", "", "Status websocket URL (default ws://localhost<listen>/ws/status)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target := mustGetString(cmd, "url")
	if target == "" {
		target = statusURL(cfg.Listen)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		var st session.Status
		if err := json.Unmarshal(data, &st); err != nil {
			continue
		}
		fmt.Println(formatStatus(st))
	}
}

// statusURL builds the local status websocket URL from a listen address.
func statusURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "ws://localhost:8090/ws/status"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: "/ws/status"}
	return u.String()
}

func formatStatus(st session.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  state=%s admission=%s faces=%d",
		st.UpdatedAt.Format("15:04:05.000"), st.State, st.Admission, st.FaceCount)
	if st.CanCapture {
		b.WriteString(" [ready]")
	}
	if st.Warning != "" {
		fmt.Fprintf(&b, " warning=%q", st.Warning)
	}
	if st.LastOutcome != nil {
		fmt.Fprintf(&b, " last=%s", st.LastOutcome.Kind)
	}
	if st.Error != "" {
		fmt.Fprintf(&b, " error=%q", st.Error)
	}
	return b.String()
}

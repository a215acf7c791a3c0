package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-brawler/pkg/mixer"
)

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running robot's status from another machine",
	Long: `Connects to the dashboard websocket of a running brawler and prints one
line per status update.

Example:
  brawler watch --addr robot.local:8080`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "dashboard address (default from config)")
}

// watchStatus is the subset of the status message printed per line.
type watchStatus struct {
	Tick       uint64       `json:"tick"`
	State      string       `json:"state"`
	Mode       string       `json:"mode"`
	KillReason string       `json:"kill_reason"`
	Freshness  string       `json:"freshness"`
	Intent     mixer.Intent `json:"intent"`
	Motors     []float64    `json:"motors"`
	Weapon     float64      `json:"weapon"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	addr := watchAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Web.Addr
	}
	if host, port, err := net.SplitHostPort(addr); err == nil && host == "" {
		addr = net.JoinHostPort("localhost", port)
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/status"}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", u.String(), err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	out := cmd.OutOrStdout()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var st watchStatus
		if err := json.Unmarshal(data, &st); err != nil {
			continue
		}
		fmt.Fprintln(out, formatStatus(st))
	}
}

func formatStatus(st watchStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%8d %-9s %-10s %-5s", st.Tick, st.State, st.Mode, st.Freshness)
	fmt.Fprintf(&sb, " x=%+.2f y=%+.2f r=%+.2f", st.Intent.X, st.Intent.Y, st.Intent.Rotate)
	sb.WriteString(" motors=[")
	for i, m := range st.Motors {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%+.2f", m)
	}
	fmt.Fprintf(&sb, "] weapon=%.2f", st.Weapon)
	if st.KillReason != "" {
		fmt.Fprintf(&sb, " kill=%q", st.KillReason)
	}
	return sb.String()
}

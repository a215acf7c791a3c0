package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-brawler/pkg/ibus"
	"github.com/teslashibe/go-brawler/pkg/receiver"
)

var (
	decodeFile   string
	decodePort   string
	decodeCount  int
	decodeRecord string
	decodeList   bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Print decoded iBus frames",
	Long: `Reads the receiver (or a capture file) and prints every verified frame.
Use it to check wiring and the checksum variant before arming the robot:
a healthy link shows frames and no checksum failures.

Examples:
  brawler decode --list
  brawler decode --port /dev/ttyUSB0 --record match.ibus
  brawler decode --file match.ibus`,
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeFile, "file", "f", "", "decode a capture file instead of the serial port")
	decodeCmd.Flags().StringVarP(&decodePort, "port", "p", "", "serial port (default from config)")
	decodeCmd.Flags().IntVarP(&decodeCount, "count", "n", 0, "stop after N frames (0 = until Ctrl-C)")
	decodeCmd.Flags().StringVar(&decodeRecord, "record", "", "also write raw bytes to this file for --replay")
	decodeCmd.Flags().BoolVar(&decodeList, "list", false, "list serial ports and exit")
}

func runDecode(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if decodeList {
		ports, err := receiver.Ports()
		if err != nil {
			return fmt.Errorf("failed to list ports: %w", err)
		}
		if len(ports) == 0 {
			fmt.Fprintln(out, "no serial ports found")
		}
		for _, p := range ports {
			fmt.Fprintln(out, p)
		}
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ibcfg, err := cfg.IBus()
	if err != nil {
		return err
	}

	var src io.Reader
	if decodeFile != "" {
		f, err := os.Open(decodeFile)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	} else {
		if decodePort != "" {
			cfg.Receiver.Port = decodePort
		}
		s := receiver.NewSerial(cfg.Receiver)
		defer s.Close()
		src = s
	}

	if decodeRecord != "" {
		rec, err := os.Create(decodeRecord)
		if err != nil {
			return err
		}
		defer rec.Close()
		src = io.TeeReader(src, rec)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	dec := ibus.NewDecoder(ibcfg)
	buf := make([]byte, 256)
	printed := 0
	for ctx.Err() == nil {
		n, err := src.Read(buf)
		for f := range dec.Feed(buf[:n]) {
			printed++
			fmt.Fprintf(out, "%6d  %s\n", printed, formatFrame(f))
			if decodeCount > 0 && printed >= decodeCount {
				return printDecodeStats(out, dec.Stats())
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "read:", err)
			time.Sleep(cfg.Receiver.Backoff)
		}
	}
	return printDecodeStats(out, dec.Stats())
}

func formatFrame(f ibus.Frame) string {
	var sb strings.Builder
	for i, v := range f.Channels {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%4d", v)
	}
	return sb.String()
}

func printDecodeStats(w io.Writer, st ibus.Stats) error {
	_, err := fmt.Fprintf(w, "frames=%d checksum_failures=%d dropped_bytes=%d\n",
		st.Frames, st.ChecksumFailures, st.DroppedBytes)
	return err
}

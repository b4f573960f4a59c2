package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-attend/pkg/admission"
	"github.com/teslashibe/go-attend/pkg/session"
	"github.com/teslashibe/go-attend/pkg/verify"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Check in once without a UI",
	Long: `Open the camera, wait until exactly one face is steadily in frame,
capture a still and submit it. Exits non-zero if attendance was not recorded.`,
	RunE: runCheckin,
}

func init() {
	rootCmd.AddCommand(checkinCmd)

	checkinCmd.Flags().Duration("wait", 30*time.Second, "How long to wait for a single face")
	checkinCmd.Flags().Bool("json", false, "Print the outcome as JSON")
}

func runCheckin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := newPipeline(cfg)
	defer p.Close()

	var warned atomic.Bool
	unsubscribe := p.ctrl.Subscribe(func(st session.Status) {
		if st.Admission != admission.MultiFace {
			warned.Store(false)
			return
		}
		if warned.CompareAndSwap(false, true) {
			fmt.Fprintln(os.Stderr, st.Warning)
		}
	})
	defer unsubscribe()

	if err := p.ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Look at the camera...")

	deadline := time.NewTimer(mustGetDuration(cmd, "wait"))
	defer deadline.Stop()
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.ctrl.Cancel()
			return ctx.Err()
		case <-deadline.C:
			p.ctrl.Cancel()
			return errors.New("no single face detected in time")
		case <-ticker.C:
		}

		st := p.ctrl.Status()
		if !st.CanCapture || st.FaceCount != 1 {
			continue
		}

		out, err := p.ctrl.Capture(ctx)
		if errors.Is(err, session.ErrCaptureBlocked) {
			continue
		}
		if err != nil {
			return err
		}
		return report(out, mustGetBool(cmd, "json"))
	}
}

func report(out verify.Outcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else if out.Success {
		if out.Confidence > 0 {
			fmt.Printf("%s (%s, confidence %.2f)\n", out.Message, out.Timestamp, out.Confidence)
		} else {
			fmt.Printf("%s (%s)\n", out.Message, out.Timestamp)
		}
	} else {
		fmt.Println(out.Message)
	}

	if !out.Success {
		return fmt.Errorf("check-in failed: %s", out.Kind)
	}
	return nil
}

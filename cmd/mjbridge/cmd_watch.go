package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/open-teleop/mujoco-bridge/pkg/config"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/pkg/telemetry"
	"github.com/open-teleop/mujoco-bridge/pkg/zeromq"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print step telemetry from a running bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			endpoint, _ := cmd.Flags().GetString("endpoint")
			count, _ := cmd.Flags().GetInt("count")

			if endpoint == "" {
				configDir, _ := cmd.Flags().GetString("config-dir")
				bootstrap, err := config.LoadBootstrapConfig(configDir)
				if err != nil {
					return fmt.Errorf("no --endpoint given and %w", err)
				}
				endpoint = connectAddress(bootstrap.ZeroMQ.PublishBindAddress)
				if endpoint == "" {
					return fmt.Errorf("telemetry publishing is disabled in %s and no --endpoint given", config.BootstrapFileName)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			sub, err := zeromq.NewTelemetrySubscriber(endpoint, customlog.NewWriterLogger("warn", os.Stderr))
			if err != nil {
				return err
			}

			seen := 0
			enc := json.NewEncoder(os.Stdout)
			return sub.Run(ctx, func(topic string, frame *telemetry.Frame) {
				if jsonOut {
					enc.Encode(frame)
				} else {
					fmt.Printf("call=%d sim_time=%.4f latency=%v position=%s objects=%d\n",
						frame.Call, frame.SimTime, frame.Duration, formatFloats(frame.Position), len(frame.Objects))
				}
				seen++
				if count > 0 && seen >= count {
					cancel()
				}
			})
		},
	}

	cmd.Flags().String("endpoint", "", "Telemetry PUB endpoint (default: derived from zeromq.publish_bind_address)")
	cmd.Flags().Int("count", 0, "Exit after this many frames (0 = run until interrupted)")
	return cmd
}

// connectAddress turns a bind address such as tcp://*:5556 into one a
// local client can connect to.
func connectAddress(bind string) string {
	if port, ok := strings.CutPrefix(bind, "tcp://*:"); ok {
		return "tcp://localhost:" + port
	}
	return bind
}

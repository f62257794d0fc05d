package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/open-teleop/mujoco-bridge/pkg/config"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/pkg/recorder"
)

func newStepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps [session-prefix]",
		Short: "List recorded sessions, or the steps of one session",
		Long: `Without an argument, list every recording session, newest first.
With a session ID or unique prefix, list the steps of that session.
Use "latest" for the newest session.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			dbPath, _ := cmd.Flags().GetString("db")

			if dbPath == "" {
				configDir, _ := cmd.Flags().GetString("config-dir")
				bootstrap, err := config.LoadBootstrapConfig(configDir)
				if err != nil {
					return fmt.Errorf("no --db given and %w", err)
				}
				if bootstrap.Recorder.Path == "" {
					return fmt.Errorf("recording is disabled in %s and no --db given", config.BootstrapFileName)
				}
				dbPath = bootstrap.Recorder.Path
			}
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("recording not found: %w", err)
			}

			rec, err := recorder.Open(dbPath, customlog.Discard(), nil)
			if err != nil {
				return err
			}
			defer rec.Close()

			ctx := cmd.Context()
			if len(args) == 0 {
				sessions, err := rec.Sessions(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{"sessions": sessions})
				}
				printSessions(sessions)
				return nil
			}

			prefix := args[0]
			if prefix == "latest" {
				prefix = ""
			}
			id, err := rec.ResolveSession(ctx, prefix)
			if err != nil {
				return err
			}
			steps, err := rec.Steps(ctx, id, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"session": id,
					"steps":   steps,
				})
			}
			printSteps(id, steps)
			return nil
		},
	}

	cmd.Flags().String("db", "", "Recording database (default: recorder.path from bridge_config.yaml)")
	cmd.Flags().Int("limit", 0, "Maximum number of steps to list (0 = all)")
	return cmd
}

func printSessions(sessions []recorder.Session) {
	if len(sessions) == 0 {
		fmt.Println("No recorded sessions.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tSTEPS\tOBJECTS\tJOINTS\tMODEL")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Steps, s.Objects, len(s.Joints), s.ModelPath)
	}
	w.Flush()
}

func printSteps(session string, steps []recorder.Step) {
	fmt.Printf("Session %s: %d steps\n", session, len(steps))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CALL\tSIM_TIME\tLATENCY\tPOSITION")
	for _, s := range steps {
		fmt.Fprintf(w, "%d\t%.4f\t%v\t%s\n", s.Call, s.SimTime, s.Duration, formatFloats(s.Position))
	}
	w.Flush()
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

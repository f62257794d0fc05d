package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-teleop/mujoco-bridge/pkg/mujoco"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"version": version,
					"commit":  commit,
					"date":    date,
					"mujoco":  mujoco.Version(),
				})
			} else {
				fmt.Printf("mjbridge version %s (commit: %s, built: %s, mujoco %d)\n", version, commit, date, mujoco.Version())
			}
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/open-teleop/mujoco-bridge/pkg/api"
	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	"github.com/open-teleop/mujoco-bridge/pkg/config"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/pkg/mujoco"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <model.xml>",
		Short: "Print the parameters, bodies and joints of a model",
		Long: `Load a MuJoCo model and print what the bridge would log at startup,
then check it against the relay layout of the sim config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			license, _ := cmd.Flags().GetString("license")
			simConfigPath, _ := cmd.Flags().GetString("sim-config")

			simCfg, err := inspectSimConfig(cmd, simConfigPath)
			if err != nil {
				return err
			}

			if err := mujoco.Activate(license); err != nil {
				return err
			}
			defer mujoco.Deactivate()

			s, err := mujoco.Load(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			layout := bridge.LayoutFor(simCfg)
			layoutErr := layout.Check(s.Model())

			if jsonOut {
				out := struct {
					api.ModelInfo
					Warning     string `json:"warning,omitempty"`
					LayoutError string `json:"layout_error,omitempty"`
				}{ModelInfo: api.NewModelInfo(s.Model(), layout), Warning: s.Warning}
				if layoutErr != nil {
					out.LayoutError = layoutErr.Error()
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			bridge.LogModel(customlog.NewWriterLogger("info", os.Stdout), s.Model(), layout.Objects)
			if s.Warning != "" {
				fmt.Printf("\nLoader warning: %s\n", s.Warning)
			}
			if layoutErr != nil {
				fmt.Printf("\nRelay layout: %v\n", layoutErr)
			} else {
				fmt.Printf("\nRelay layout OK: %d joints after %d free objects, banks gravity=%d position=%d velocity=%d\n",
					layout.Joints, layout.Objects, layout.Gravity, layout.Position, layout.Velocity)
			}
			return nil
		},
	}

	cmd.Flags().String("license", "mjkey.txt", "MuJoCo license file")
	cmd.Flags().String("sim-config", "", "Sim config file (default: the one named by bridge_config.yaml, else built-in defaults)")
	return cmd
}

// inspectSimConfig loads the sim config named on the command line, else the
// one from the bootstrap config, else the defaults.
func inspectSimConfig(cmd *cobra.Command, path string) (*config.SimConfig, error) {
	if path != "" {
		return config.LoadSimConfig(path)
	}
	configDir, _ := cmd.Flags().GetString("config-dir")
	if _, err := os.Stat(filepath.Join(configDir, config.BootstrapFileName)); err != nil {
		return config.DefaultSimConfig(), nil
	}
	bootstrap, err := config.LoadBootstrapConfig(configDir)
	if err != nil {
		return nil, err
	}
	return config.LoadSimConfig(bootstrap.SimConfigPath())
}

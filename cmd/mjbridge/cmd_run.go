package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/open-teleop/mujoco-bridge/domain/diagnostic"
	"github.com/open-teleop/mujoco-bridge/pkg/api"
	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	"github.com/open-teleop/mujoco-bridge/pkg/config"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/pkg/mujoco"
	"github.com/open-teleop/mujoco-bridge/pkg/processing"
	"github.com/open-teleop/mujoco-bridge/pkg/recorder"
	"github.com/open-teleop/mujoco-bridge/pkg/ros"
	"github.com/open-teleop/mujoco-bridge/pkg/zeromq"
	"github.com/open-teleop/mujoco-bridge/services"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge node",
		Long: `Register with the ROS master, load the model named by the private
~model_file parameter and relay joint state commands until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runBridge(ctx, configDir)
		},
	}
}

// bridgeRuntime holds everything the node owns, torn down in reverse start order.
type bridgeRuntime struct {
	logger customlog.Logger

	node      *ros.Node
	activated bool
	simulator *mujoco.Simulator
	relay     *ros.Relay
	interp    *bridge.Interpreter
	director  *processing.StepDirector
	zmq       *zeromq.ZeroMQService
	hub       *api.StateHub
	server    *api.Server
	recorder  *recorder.Recorder

	background sync.WaitGroup
	cancels    []context.CancelFunc
}

// goBackground runs fn on its own goroutine until shutdown cancels its
// context. shutdown waits for fn to return before closing the simulator.
func (rt *bridgeRuntime) goBackground(ctx context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(ctx)
	rt.cancels = append(rt.cancels, cancel)
	rt.background.Add(1)
	go func() {
		defer rt.background.Done()
		fn(ctx)
	}()
}

func (rt *bridgeRuntime) stopBackground() {
	for _, cancel := range rt.cancels {
		cancel()
	}
	rt.background.Wait()
}

func runBridge(ctx context.Context, configDir string) error {
	bootstrap, err := config.LoadBootstrapConfig(configDir)
	if err != nil {
		return fmt.Errorf("failed to load bootstrap config: %w", err)
	}

	logger, err := customlog.NewLogrusLogger(bootstrap.Logging.Level, bootstrap.Logging.LogPath)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	mujoco.SetLogger(logger)
	logger.Infof("Starting mjbridge %s", version)

	cfgService, err := services.NewSimConfigService(bootstrap.SimConfigPath(), logger)
	if err != nil {
		return err
	}
	simCfg := cfgService.GetCurrentConfig()

	rt := &bridgeRuntime{logger: logger}
	defer rt.shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt.node, err = ros.NewNode(bootstrap.ROS, logger)
	if err != nil {
		return err
	}

	licenseFile, modelFile, err := rt.node.Params()
	if err != nil {
		logger.Errorf("%v", err)
		return err
	}

	if err := mujoco.Activate(licenseFile); err != nil {
		return err
	}
	rt.activated = true

	rt.simulator, err = mujoco.Load(modelFile)
	if err != nil {
		return err
	}

	topics := processing.NewTopicRegistry(logger)
	rt.relay, err = ros.NewRelay(rt.node, simCfg.Topics, topics)
	if err != nil {
		return err
	}
	topics.LoadFromConfig(rt.relay.Topics())

	rt.interp = bridge.New(rt.simulator, simCfg, rt.relay, logger, nil)
	if err := rt.interp.Start(); err != nil {
		return err
	}

	// Step fan-out
	rt.director = processing.NewStepDirector(logger, &processing.DirectorOptions{
		Workers:   bootstrap.Processing.Workers,
		QueueSize: bootstrap.Processing.QueueSize,
	})
	results := processing.NewLoggingResultHandler(logger)
	rt.director.SetResultHandler(results.CreateHandlerFunc())

	diagnostics := diagnostic.NewDiagnosticService(rt.interp, nil)
	diagnostics.SetPoolSource(rt.director)
	diagnostics.SetErrorSource(results)

	rt.zmq, err = zeromq.NewZeroMQService(bootstrap.ZeroMQ, logger)
	if err != nil {
		return err
	}
	statusProvider := func() (interface{}, error) { return rt.interp.Status(), nil }
	zeromq.RegisterBridgeHandlers(rt.zmq, zeromq.Providers{
		ModelInfo: func() (interface{}, error) {
			return api.NewModelInfo(rt.interp.Model(), rt.interp.Layout()), nil
		},
		State: statusProvider,
		Config: func() (interface{}, error) {
			if cfg := cfgService.GetCurrentConfig(); cfg != nil {
				return cfg, nil
			}
			return nil, services.ErrConfigNotLoaded
		},
	}, logger)
	if err := rt.zmq.Start(); err != nil {
		return err
	}
	if rt.zmq.HasPublisher() {
		telemetryPub := zeromq.NewTelemetryPublisher(rt.zmq, logger)
		if err := rt.director.Register(processing.PriorityHigh, "telemetry", telemetryPub.PublishStep); err != nil {
			return err
		}
		if interval := bootstrap.ZeroMQ.StatusIntervalMs; interval > 0 {
			rt.goBackground(ctx, func(ctx context.Context) {
				zeromq.RunStatusHeartbeat(ctx, rt.zmq, clock.New(), time.Duration(interval)*time.Millisecond, statusProvider, logger)
			})
		}
	}

	if bootstrap.Recorder.Path != "" {
		rt.recorder, err = recorder.Open(bootstrap.Recorder.Path, logger, nil)
		if err != nil {
			return err
		}
		if _, err := rt.recorder.StartSession(ctx, recorder.SessionInfo{
			ModelPath: modelFile,
			Joints:    rt.interp.JointNames(),
			Objects:   simCfg.Objects(),
		}); err != nil {
			return err
		}
		if err := rt.director.Register(processing.PriorityLow, "recorder", rt.recorder.Record); err != nil {
			return err
		}
	}

	var serverErr <-chan error
	if bootstrap.Server.HTTPPort > 0 {
		rt.hub = api.NewStateHub(0, logger)
		if err := rt.director.Register(processing.PriorityStandard, "websocket",
			processing.NewJSONPublishProcessor(rt.hub, api.StateTopic)); err != nil {
			return err
		}
		rt.server = api.NewServer(api.Deps{
			Model:       rt.interp,
			Topics:      topics,
			Diagnostics: diagnostics.GetMetricsHandler,
			Config:      cfgService,
			Hub:         rt.hub,
		}, logger, bootstrap.Logging.Level == "debug")
		serverErr = rt.server.Start(bootstrap.Server.HTTPPort)
	}

	rt.interp.AddObserver(diagnostics)
	rt.interp.AddObserver(rt.director)
	rt.director.Start()

	if err := rt.relay.Subscribe(func(cmd *bridge.JointState) {
		if _, err := rt.interp.HandleJointState(cmd); err != nil {
			if errors.Is(err, bridge.ErrShortCommand) {
				logger.Warnf("Dropping command: %v", err)
				return
			}
			logger.Errorf("Failed to relay command: %v", err)
		}
	}); err != nil {
		return err
	}

	logger.Infof("Bridge running; waiting for commands")
	select {
	case <-ctx.Done():
		logger.Infof("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	return nil
}

// shutdown stops command intake and background readers first so nothing
// touches a closing simulator. The hub closes before the server so open
// websocket handlers return.
func (rt *bridgeRuntime) shutdown() {
	if rt.relay != nil {
		rt.relay.Close()
	}
	rt.stopBackground()
	if rt.hub != nil {
		rt.hub.Close()
	}
	if rt.server != nil {
		if err := rt.server.Shutdown(shutdownTimeout); err != nil {
			rt.logger.Errorf("%v", err)
		}
	}
	if rt.director != nil {
		rt.director.Stop()
	}
	if rt.zmq != nil {
		rt.zmq.Stop()
	}
	if rt.recorder != nil {
		if err := rt.recorder.Close(); err != nil {
			rt.logger.Errorf("Failed to close recorder: %v", err)
		}
	}
	switch {
	case rt.interp != nil:
		if err := rt.interp.Close(); err != nil {
			rt.logger.Errorf("Failed to release simulator: %v", err)
		}
	case rt.simulator != nil:
		rt.simulator.Close()
	}
	if rt.activated {
		mujoco.Deactivate()
	}
	if rt.node != nil {
		rt.node.Close()
	}
	rt.logger.Infof("mjbridge exited")
}

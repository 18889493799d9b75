// Package commands implements the agora-server CLI surface of §6.
package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teranos/agora/internal/apphandler"
	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/appmanager"
	"github.com/teranos/agora/internal/config"
	"github.com/teranos/agora/internal/errors"
	"github.com/teranos/agora/internal/logging"
	"github.com/teranos/agora/internal/remote"
	"github.com/teranos/agora/internal/storage"
	"github.com/teranos/agora/internal/workerpool"
)

// RootCmd is agora-server's single command: there is no subcommand
// surface (unlike the teacher's multi-purpose qntx CLI) since the
// server does exactly one job.
var RootCmd = &cobra.Command{
	Use:   "agora-server",
	Short: "agora remote autotuning orchestration server",
	Long: `agora-server brokers design-of-experiments exploration, model
building, clustering and prediction for any number of managed
applications over a pub/sub broker connection, persisting every application's state to a
pluggable Filesystem Handler so it can resume across restarts.`,
	SilenceUsage: true,
	RunE:         runServer,
}

var v = viper.New()

func init() {
	flags := RootCmd.Flags()
	flags.String("workspace-directory", "", "plugin workspace root (required)")
	flags.String("plugin-directory", "", "installed-plugin root (required)")
	flags.String("models-directory", "", "per-metric model artifact root (required)")
	flags.String("storage-implementation", "csv", "filesystem handler backend")
	flags.String("mqtt-implementation", "paho", "broker client implementation")
	flags.String("broker-url", "", "broker host:port")
	flags.String("broker-username", "", "broker username")
	flags.String("broker-password", "", "broker password")
	flags.String("broker-ca", "", "broker CA certificate path")
	flags.String("client-ca", "", "client CA certificate path")
	flags.String("client-private-key", "", "client private key path")
	flags.Int("qos", 2, "broker QoS (0, 1 or 2)")
	flags.String("min-log-level", "info", "disabled|warning|info|pedantic|debug")
	flags.Bool("log-to-file", false, "redirect logs to --log-file instead of stdout")
	flags.String("log-file", "", "log file path, used when --log-to-file is set")
	flags.Int("num-threads", 3, "worker pool size (recommended >= number of managed apps)")
	flags.String("doe-plugin", "doe_plugin", "installed plugin name used for design-of-experiments")
	flags.String("cluster-plugin", "cluster_plugin", "installed plugin name used for clustering")
	flags.String("prediction-plugin", "prediction_plugin", "installed plugin name used for prediction")

	_ = v.BindPFlags(flags)
	v.BindPFlag("workspace_directory", flags.Lookup("workspace-directory"))
	v.BindPFlag("plugin_directory", flags.Lookup("plugin-directory"))
	v.BindPFlag("models_directory", flags.Lookup("models-directory"))
	v.BindPFlag("storage_implementation", flags.Lookup("storage-implementation"))
	v.BindPFlag("num_threads", flags.Lookup("num-threads"))
	v.BindPFlag("broker.mqtt_implementation", flags.Lookup("mqtt-implementation"))
	v.BindPFlag("broker.broker_url", flags.Lookup("broker-url"))
	v.BindPFlag("broker.broker_username", flags.Lookup("broker-username"))
	v.BindPFlag("broker.broker_password", flags.Lookup("broker-password"))
	v.BindPFlag("broker.broker_ca", flags.Lookup("broker-ca"))
	v.BindPFlag("broker.client_ca", flags.Lookup("client-ca"))
	v.BindPFlag("broker.client_private_key", flags.Lookup("client-private-key"))
	v.BindPFlag("broker.qos", flags.Lookup("qos"))
	v.BindPFlag("logging.min_log_level", flags.Lookup("min-log-level"))
	v.BindPFlag("logging.log_to_file", flags.Lookup("log-to-file"))
	v.BindPFlag("logging.log_file", flags.Lookup("log-file"))
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	doePlugin, _ := cmd.Flags().GetString("doe-plugin")
	clusterPlugin, _ := cmd.Flags().GetString("cluster-plugin")
	predictionPlugin, _ := cmd.Flags().GetString("prediction-plugin")

	log, err := logging.New(logging.Level(cfg.Logging.MinLevel), logFilePath(cfg))
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	defer log.Sync()

	if err := os.MkdirAll(cfg.WorkspaceDirectory, 0o755); err != nil {
		return errors.Wrap(err, "failed to create workspace directory")
	}

	storageRoot := storageRootFor(cfg)
	store := storage.NewHandler(storageRoot)

	keepalive := remote.DefaultKeepaliveConfig()
	broker := remote.NewWebSocketBroker(cfg.Broker.URL, "agora-server", keepalive, log)
	remoteHandler := remote.NewRemoteHandler(broker, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := remoteHandler.Connect(ctx, "margot/system/agora-server", "shutdown", cfg.Broker.QoS); err != nil {
		return errors.Wrap(err, "failed to connect to broker")
	}
	defer remoteHandler.Disconnect()

	if err := remoteHandler.Subscribe("margot/+/welcome/+"); err != nil {
		log.Warnw("failed to subscribe to welcome topic", "error", err)
	}
	if err := remoteHandler.Subscribe("margot/+/info/+"); err != nil {
		log.Warnw("failed to subscribe to info topic", "error", err)
	}
	if err := remoteHandler.Subscribe("margot/+/observation/+"); err != nil {
		log.Warnw("failed to subscribe to observation topic", "error", err)
	}
	if err := remoteHandler.Subscribe("margot/+/kia/+"); err != nil {
		log.Warnw("failed to subscribe to kia topic", "error", err)
	}
	if err := remoteHandler.Subscribe("margot/system/+"); err != nil {
		log.Warnw("failed to subscribe to system topic", "error", err)
	}

	if err := remoteHandler.SendMessage("margot/welcome", ""); err != nil {
		log.Warnw("failed to announce server presence", "error", err)
	}

	handlerCfg := apphandler.Config{
		WorkspaceRoot:    cfg.WorkspaceDirectory,
		PluginRoot:       cfg.PluginDirectory,
		ModelsRoot:       cfg.ModelsDirectory,
		DoEPlugin:        doePlugin,
		ClusterPlugin:    clusterPlugin,
		PredictionPlugin: predictionPlugin,
	}

	manager := appmanager.New(handlerCfg, remoteHandler, func(appid.ID) *storage.Handler { return store }, log)

	pool := workerpool.New(remoteHandler, manager, remoteHandler.MyClientID(), log)
	pool.Start(ctx, workerpool.Config{Workers: cfg.NumThreads})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Infow("signal received, shutting down")
	case <-ctx.Done():
	}

	pool.Stop()
	return nil
}

func logFilePath(cfg *config.Config) string {
	if !cfg.Logging.ToFile {
		return ""
	}
	return cfg.Logging.FilePath
}

func storageRootFor(cfg *config.Config) string {
	return filepath.Join(cfg.WorkspaceDirectory, "storage")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/weftlang/weft/internal/executor"
	"github.com/weftlang/weft/internal/kernel"
	"github.com/weftlang/weft/internal/kvstore"
	"github.com/weftlang/weft/internal/registry"
	"github.com/weftlang/weft/internal/tracing"
	"github.com/weftlang/weft/internal/transport"
	"github.com/weftlang/weft/internal/vectorstore"
	"github.com/weftlang/weft/internal/wire"
)

var startFlags hostConfig

var kernelStartCmd = &cobra.Command{
	Use:   "start",
	Short: "start a weft kernel in the foreground",
	Run:   runKernelStart,
}

func init() {
	kernelStartCmd.Flags().BoolVar(&startFlags.Daemon, "daemon", false, "detach after binding (unimplemented: runs in foreground)")
	kernelStartCmd.Flags().IntVar(&startFlags.Port, "port", 0, "base port (0 = kernel-assigned for every channel)")
	kernelStartCmd.Flags().StringVar(&startFlags.KernelID, "id", "", "kernel id (default: random)")
	kernelStartCmd.Flags().StringVar(&startFlags.ConnectionFile, "connection-file", "", "connection file path (default: ~/.weftd/kernels/<id>.json)")
	kernelStartCmd.Flags().StringVar(&startFlags.WorkingDir, "working-dir", "", "working directory")
	kernelStartCmd.Flags().StringVar(&startFlags.LogFile, "log-file", "", "log file path (default: stderr)")
	kernelStartCmd.Flags().StringVar(&startFlags.PIDFile, "pid-file", "", "PID file path")
	kernelStartCmd.Flags().StringVar(&startFlags.IP, "ip", "127.0.0.1", "bind IP")
	kernelStartCmd.Flags().StringVar(&startFlags.TransportKind, "transport", "tcp", "transport kind (tcp|ipc)")
}

func runKernelStart(cmd *cobra.Command, args []string) {
	if startFlags.WorkingDir != "" {
		if err := os.Chdir(startFlags.WorkingDir); err != nil {
			fmt.Fprintf(os.Stderr, "weftd: chdir: %v\n", err)
			os.Exit(exitConfigError)
		}
	}

	cfg, err := loadConfig(startFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "weftd: config error: %v\n", err)
		os.Exit(exitConfigError)
	}

	log, err := buildLogger(cfg, startFlags.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "weftd: config error: %v\n", err)
		os.Exit(exitConfigError)
	}
	defer log.Sync()

	executor.SetGlobalWorkers(cfg.ExecutorWorkers)

	ctx, cancelTracing := context.WithCancel(context.Background())
	defer cancelTracing()
	if err := tracing.Init(ctx, cfg.TracingEndpoint); err != nil {
		log.Warn("tracing init failed, continuing without it", zap.Error(err))
	}
	defer tracing.Shutdown(ctx)

	deps := kernel.Deps{
		Transport: transport.NewZMQTransport(),
		Registry:  registry.NewInMemory(),
		KV:        kvstore.NewInMemory(),
		Log:       log,
	}
	if cfg.DataDir != "" {
		deps.Vectors = vectorstore.New(cfg.HNSWM, cfg.HNSWEfConstruction, cfg.HNSWEfSearch, cfg.HNSWMaxElements, cfg.ParallelBatchSize)
	}

	key := []byte(randomHex(32))
	k := kernel.New(cfg, deps, key)

	// Both the SIGHUP/config_reload signal path and a live edit of the
	// on-disk config file funnel through the same re-read (SPEC_FULL's
	// "Config hot-reload" supplement): watchConfigReload's callback calls
	// the same ReloadConfig the signal bridge triggers.
	k.SetConfigReloader(func() (string, error) {
		return viper.GetString("log_level"), nil
	})
	watchConfigReload(func(e fsnotify.Event) {
		log.Info("config file changed, reloading", zap.String("file", e.Name))
		k.ReloadConfig()
	})

	tcfg := transport.Config{
		TransportKind: cfg.Transport,
		IP:            cfg.IP,
		Ports:         perChannelPorts(startFlags.Port),
	}
	if err := k.Bind(tcfg); err != nil {
		fmt.Fprintf(os.Stderr, "weftd: bind failure: %v\n", err)
		os.Exit(exitBindFailure)
	}

	fmt.Println(cfg.KernelID)
	log.Info("kernel started", zap.String("kernel_id", cfg.KernelID), zap.String("connection_file", cfg.ConnectionFile))

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := k.Run(runCtx); err != nil {
		log.Error("kernel exited with error", zap.Error(err))
		os.Exit(exitInternalError)
	}
	os.Exit(exitClean)
}

// perChannelPorts maps a single --port flag (0 = let the transport assign
// every channel a port) onto the per-channel Ports map transport.Config
// expects; a non-zero base port is only meaningful for ipc-style single
// sockets, so network binds always pass 0 (kernel-assigned) per channel
// unless basePort is explicitly non-zero, in which case it seeds shell and
// leaves the rest kernel-assigned.
func perChannelPorts(basePort int) map[wire.Channel]int {
	ports := map[wire.Channel]int{}
	for _, ch := range wire.AllChannels {
		ports[ch] = 0
	}
	if basePort != 0 {
		ports[wire.ChannelShell] = basePort
	}
	return ports
}

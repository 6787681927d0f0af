package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artemis/ai-modernizer/internal/agents"
	"github.com/artemis/ai-modernizer/internal/config"
	"github.com/artemis/ai-modernizer/internal/jobs"
	"github.com/artemis/ai-modernizer/internal/modelgateway"
	"github.com/artemis/ai-modernizer/internal/observability"
	"github.com/artemis/ai-modernizer/internal/registryprobe"
	"github.com/artemis/ai-modernizer/internal/sandbox"
	"github.com/artemis/ai-modernizer/internal/server"
	"github.com/artemis/ai-modernizer/internal/toolhost"
	"github.com/artemis/ai-modernizer/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	logger  *observability.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ai-modernizer",
	Short: "Agent-driven dependency upgrade tool",
	Long: `ai-modernizer plans, validates, and ships dependency upgrades for a
project by running a Planner/Validator/Analyzer/Deployer pipeline against
a disposable Docker sandbox.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		logger, err = observability.NewLogger("info")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
			os.Exit(1)
		}

		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			logger.Error("failed to load config", zap.Error(err))
			os.Exit(1)
		}
		config.LoadConfigFromEnv(cfg)

		if cfg.LogLevel != "" {
			if l, err := observability.NewLogger(cfg.LogLevel); err == nil {
				logger = l
			} else {
				logger.Warn("failed to set log level, using default", zap.Error(err))
			}
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/WS server",
	Long:  "Start ai-modernizer in daemon mode, accepting migrations over HTTP and streaming progress over WebSocket.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd, args); err != nil {
			logger.Error("server exited with error", zap.Error(err))
			os.Exit(1)
		}
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	healthChecker := observability.NewHealthChecker()

	var driver *sandbox.Driver
	sandboxDriver, err := sandbox.NewDriver(logger, cfg.DockerHost, cfg.SandboxCleanup, cfg.SandboxTimeout())
	if err != nil {
		logger.Warn("docker unreachable, sandbox validation will fail fast", zap.Error(err))
	} else {
		driver = sandboxDriver
		defer driver.Close()
	}
	if driver != nil {
		healthChecker.RegisterCheck("docker", observability.DockerHealthCheck(driver.Ping))
		go healthChecker.StartPeriodicChecks(ctx, 10*time.Second)
	}

	provider := selectProvider(cfg)
	gateway := modelgateway.New(provider, metrics, logger)

	host := toolhost.NewHost(toolServerConfigs(cfg), toolhost.NewLocalFS(), codeHostCaller(cfg), logger, metrics)
	fsClient := toolhost.NewFSClient(host, "fs")
	codeHostClient := toolhost.NewCodeHostClient(host, "code_host")

	probe := registryprobe.New(cfg.RegistryProbeConcurrency)

	planner := agents.NewPlanner(fsClient, probe, gateway)
	validator := agents.NewValidator(fsClient, driver, gateway)
	analyzer := agents.NewAnalyzer(gateway)
	deployer := agents.NewDeployer(fsClient, codeHostClient, nil)

	registry := jobs.NewRegistry(logger)
	bus := jobs.NewBus()
	pool := jobs.NewPool(cfg.WorkerPoolSize)

	engine := workflow.NewEngine(planner, validator, analyzer, deployer, registry, bus, logger, metrics, nil, gateway)

	httpServer := server.NewServer(cfg, registry, bus, pool, engine, driver, healthChecker, metrics, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
		httpServer.Stop()
	}()

	logger.Info("starting ai-modernizer server",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("model_provider", cfg.ModelProvider),
	)

	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// selectProvider builds the Provider named by cfg.ModelProvider. An
// absent or unrecognized provider name degrades to the offline mock
// rather than failing startup, matching the policy that a missing
// code-host token degrades to mock mode instead of refusing to run.
func selectProvider(cfg *config.Config) modelgateway.Provider {
	switch cfg.ModelProvider {
	case "reasoning":
		p, _ := cfg.Provider("REASONING")
		return modelgateway.NewReasoningProvider(p.Key, p.Model, "")
	case "efficient":
		p, _ := cfg.Provider("EFFICIENT")
		return modelgateway.NewEfficientProvider(p.Key, p.Model, "")
	default:
		return modelgateway.NewMockProvider("")
	}
}

// toolServerConfigs reads optional subprocess tool server commands from
// the environment; absent entries leave the Tool Host's in-process
// fallback as the only implementation for that tool.
func toolServerConfigs(cfg *config.Config) map[string]toolhost.ServerConfig {
	configs := make(map[string]toolhost.ServerConfig)
	if path := os.Getenv("TOOL_CODE_HOST_SERVER"); path != "" {
		configs["code_host"] = toolhost.ServerConfig{Command: path}
	}
	if len(configs) == 0 {
		return nil
	}
	return configs
}

// codeHostCaller always returns the mock code-host fallback; when no
// code-host token is configured it also logs a warning that deployments
// run in mock mode.
func codeHostCaller(cfg *config.Config) toolhost.ToolCaller {
	if cfg.CodeHostToken == "" {
		logger.Warn("no code host token configured, deployments will run in mock mode")
	}
	return toolhost.NewMockCodeHost()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.ai-modernizer/config.json)")
	rootCmd.AddCommand(serveCmd)
}

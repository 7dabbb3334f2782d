package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/confloader/internal/application"
	"github.com/eugenenazirov/confloader/internal/config"
	"github.com/eugenenazirov/confloader/internal/logging"
	"github.com/eugenenazirov/confloader/internal/schema"
)

var signalNotify = signal.Notify

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	kingpinApp := kingpin.New("confloader", "Loads key-value configuration trees with import directives and checks them against a declared schema")
	kingpinApp.UsageWriter(stderr)
	kingpinApp.ErrorWriter(stderr)

	settingsFile := kingpinApp.Flag("settings", "Path to YAML settings file for confloader itself").String()
	schemaFile := kingpinApp.Flag("schema", "Path to YAML schema declaring the expected keys").Short('s').String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	logFile := kingpinApp.Flag("log-file", "Also write logs to this rotating file").String()
	maxImportDepth := kingpinApp.Flag("max-import-depth", "Maximum nesting of import directives").Int()
	relativeImports := kingpinApp.Flag("relative-imports", "Resolve relative imports against the importing file's directory instead of the working directory").Bool()

	checkCmd := kingpinApp.Command("check", "Load a configuration tree and verify every typed key converts")
	checkPath := checkCmd.Arg("config", "Root configuration file").Required().String()

	dumpCmd := kingpinApp.Command("dump", "Load a configuration tree and print every key with its value")
	dumpPath := dumpCmd.Arg("config", "Root configuration file").Required().String()

	getCmd := kingpinApp.Command("get", "Print the resolved value of one key")
	getPath := getCmd.Arg("config", "Root configuration file").Required().String()
	getKey := getCmd.Arg("key", "Key to print").Required().String()
	getType := getCmd.Flag("type", "Conversion to apply (int, string, bool); defaults to the schema type").Enum("int", "string", "bool")

	serveCmd := kingpinApp.Command("serve", "Load a configuration tree and serve it over a read-only HTTP API")
	servePath := serveCmd.Arg("config", "Root configuration file").Required().String()
	port := serveCmd.Flag("port", "HTTP port exposed by the service").String()
	rateLimitRPSFlag := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()
	var requestLoggingSet bool
	requestLogging := serveCmd.Flag("request-logging", "Emit access logs").IsSetByUser(&requestLoggingSet).Bool()

	command, err := kingpinApp.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "confloader: %v\n", err)
		return 2
	}

	overrides := &config.CLIOverrides{
		SettingsFile:   *settingsFile,
		SchemaFile:     *schemaFile,
		LogLevel:       *logLevel,
		LogFile:        *logFile,
		MaxImportDepth: *maxImportDepth,

		RelativeImports: *relativeImports,
	}

	switch command {
	case checkCmd.FullCommand():
		overrides.ConfigFile = *checkPath
	case dumpCmd.FullCommand():
		overrides.ConfigFile = *dumpPath
	case getCmd.FullCommand():
		overrides.ConfigFile = *getPath
	case serveCmd.FullCommand():
		overrides.ConfigFile = *servePath
		overrides.Port = *port
		if *rateLimitRPSFlag >= 0 {
			overrides.RateLimitRPS = rateLimitRPSFlag
		}
		if *rateLimitBurstFlag >= 0 {
			overrides.RateLimitBurst = rateLimitBurstFlag
		}
		if requestLoggingSet {
			overrides.EnableRequestLogging = requestLogging
		}
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		fmt.Fprintf(stderr, "confloader: failed to load settings: %v\n", err)
		return 1
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(stderr, "confloader: failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	switch command {
	case checkCmd.FullCommand():
		return runCheck(cfg, logger, stdout)
	case dumpCmd.FullCommand():
		return runDump(cfg, logger, stdout)
	case getCmd.FullCommand():
		return runGet(cfg, logger, stdout, *getKey, schema.Type(*getType))
	case serveCmd.FullCommand():
		return runServe(cfg, logger)
	}
	return 2
}

func runCheck(cfg config.Config, logger *zap.Logger, stdout io.Writer) int {
	reg, s, err := application.Bootstrap(cfg, logger)
	if err != nil {
		logger.Error("configuration check failed", zap.Error(err))
		fmt.Fprintf(stdout, "FAIL %v\n", err)
		return 1
	}

	errs := s.Check(reg)
	for _, err := range errs {
		fmt.Fprintf(stdout, "FAIL %v\n", err)
	}
	if len(errs) > 0 {
		logger.Error("configuration check failed", zap.Int("failures", len(errs)))
		return 1
	}

	fmt.Fprintf(stdout, "OK %d keys loaded from %s\n", reg.Len(), cfg.ConfigFile)
	return 0
}

func runDump(cfg config.Config, logger *zap.Logger, stdout io.Writer) int {
	reg, _, err := application.Bootstrap(cfg, logger)
	if err != nil {
		logger.Error("failed to load configuration", zap.Error(err))
		return 1
	}
	if _, err := reg.WriteTo(stdout); err != nil {
		logger.Error("failed to write dump", zap.Error(err))
		return 1
	}
	return 0
}

func runGet(cfg config.Config, logger *zap.Logger, stdout io.Writer, key string, typ schema.Type) int {
	reg, s, err := application.Bootstrap(cfg, logger)
	if err != nil {
		logger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	entry, err := reg.Get(key)
	if err != nil {
		logger.Error("failed to read key", zap.String("key", key), zap.Error(err))
		return 1
	}
	if typ == "" {
		if decl, ok := s.Lookup(key); ok {
			typ = decl.Type
		}
	}

	value, err := schema.Convert(entry, typ)
	if err != nil {
		logger.Error("failed to convert value", zap.String("key", key), zap.Error(err))
		return 1
	}
	fmt.Fprintln(stdout, value)
	return 0
}

func runServe(cfg config.Config, logger *zap.Logger) int {
	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return 1
	}

	if err := app.Start(); err != nil {
		logger.Error("failed to start server", zap.Error(err))
		return 1
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	return 0
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}

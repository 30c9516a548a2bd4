package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	manifestPath := flag.String("manifest", "", "Path to deployment manifest (one-shot mode)")
	serve := flag.Bool("serve", false, "Run the HTTP API instead of a one-shot deploy")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("convoy %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	if !*serve && *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "either -manifest or -serve is required")
		return ExitConfigError
	}

	// Load configuration
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	// Setup logger
	logger := SetupLogger(cfg)
	logger.Info("starting convoy",
		"version", Version,
		"config", *configPath,
	)

	// Create server
	server, err := NewServer(cfg, logger)
	if err != nil {
		if sErr, ok := err.(*ServerError); ok {
			logger.Error("failed to create server",
				"error", sErr.Err,
				"operation", sErr.Op,
			)
			return sErr.ExitCode
		}
		logger.Error("failed to create server", "error", err)
		return ExitConfigError
	}
	defer server.Close()

	ctx := context.Background()

	// One-shot deploy mode
	if !*serve {
		if err := server.RunDeploy(ctx, *manifestPath); err != nil {
			if sErr, ok := err.(*ServerError); ok {
				logger.Error("deployment failed",
					"error", sErr.Err,
					"operation", sErr.Op,
				)
				return sErr.ExitCode
			}
			logger.Error("deployment failed", "error", err)
			return ExitDeployError
		}
		logger.Info("deployment succeeded", "manifest", *manifestPath)
		return ExitSuccess
	}

	// Serve mode
	if err := server.Start(ctx); err != nil {
		if sErr, ok := err.(*ServerError); ok {
			logger.Error("server error",
				"error", sErr.Err,
				"operation", sErr.Op,
			)
			return sErr.ExitCode
		}
		logger.Error("server error", "error", err)
		return ExitConfigError
	}

	return ExitSuccess
}

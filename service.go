package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kardianos/service"
)

// program implements service.Interface
type program struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	svcLogger service.Logger
}

func (p *program) Start(s service.Service) error {
	p.svcLogger, _ = s.Logger(nil)
	if p.svcLogger != nil {
		p.svcLogger.Info("BoutiqueClient Server service starting")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})

	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.done)

	if p.svcLogger != nil {
		p.svcLogger.Info("BoutiqueClient Server service running")
	}

	runServer(p.ctx)

	if p.svcLogger != nil {
		p.svcLogger.Info("BoutiqueClient Server service stopping")
	}
}

func (p *program) Stop(s service.Service) error {
	if p.svcLogger != nil {
		p.svcLogger.Info("BoutiqueClient Server service stop requested")
	}

	if p.cancel != nil {
		p.cancel()
	}

	// Wait for run() to finish with timeout
	timeout := time.After(30 * time.Second)
	select {
	case <-p.done:
		if p.svcLogger != nil {
			p.svcLogger.Info("BoutiqueClient Server service stopped gracefully")
		}
	case <-timeout:
		if p.svcLogger != nil {
			p.svcLogger.Warning("BoutiqueClient Server service stopped with timeout")
		}
	}

	return nil
}

// getServiceConfig returns the service configuration for the current platform
func getServiceConfig() *service.Config {
	var workingDir string
	switch runtime.GOOS {
	case "windows":
		workingDir = filepath.Join(os.Getenv("ProgramData"), "BoutiqueClient", "server")
	case "darwin":
		workingDir = "/Library/Application Support/BoutiqueClient/server"
	default:
		workingDir = "/var/lib/boutiqueclient/server"
	}

	return &service.Config{
		Name:             "BoutiqueClientServer",
		DisplayName:      "BoutiqueClient Server",
		Description:      "BoutiqueClient allocation server. Manages account inventory, clone inventory, and assignment orchestration.",
		WorkingDirectory: workingDir,
		Arguments:        []string{"--service", "run"},
		Option: service.KeyValue{
			// Windows service options
			"StartType":              "automatic",
			"DelayedAutoStart":       true,
			"Dependencies":           "",
			"OnFailure":              "restart",
			"OnFailureDelayDuration": "5s",
			"OnFailureResetPeriod":   30,

			// Linux systemd options
			"Restart":           "on-failure",
			"RestartSec":        5,
			"SuccessExitStatus": "0 SIGTERM",
			"KillMode":          "mixed",
			"KillSignal":        "SIGTERM",
			"SendSIGKILL":       true,

			// macOS launchd options
			"RunAtLoad":     true,
			"KeepAlive":     true,
			"SessionCreate": false,
		},
	}
}

// handleServiceControl executes an install/uninstall/start/stop action.
func handleServiceControl(action string) error {
	svcConfig := getServiceConfig()
	prg := &program{}
	svc, err := service.New(prg, svcConfig)
	if err != nil {
		return err
	}

	if action == "install" {
		if err := setupServiceDirectories(); err != nil {
			return fmt.Errorf("failed to prepare service directories: %w", err)
		}
	}

	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("service %s failed: %w", action, err)
	}
	fmt.Printf("Service %s completed\n", action)
	return nil
}

// setupServiceDirectories creates necessary directories for service operation
func setupServiceDirectories() error {
	var dirs []string
	var configPath string

	switch runtime.GOOS {
	case "windows":
		baseDir := filepath.Join(os.Getenv("ProgramData"), "BoutiqueClient")
		serverDir := filepath.Join(baseDir, "server")
		dirs = []string{
			baseDir,
			serverDir,
			filepath.Join(serverDir, "logs"),
		}
		configPath = filepath.Join(serverDir, "server.toml")
	case "darwin":
		baseDir := "/Library/Application Support/BoutiqueClient"
		serverDir := filepath.Join(baseDir, "server")
		dirs = []string{
			baseDir,
			serverDir,
			filepath.Join(serverDir, "logs"),
			"/var/log/boutiqueclient/server",
		}
		configPath = filepath.Join(serverDir, "server.toml")
	default: // Linux
		dirs = []string{
			"/var/lib/boutiqueclient",
			"/var/lib/boutiqueclient/server",
			"/var/log/boutiqueclient",
			"/var/log/boutiqueclient/server",
			"/etc/boutiqueclient",
			"/etc/boutiqueclient/server",
		}
		configPath = "/etc/boutiqueclient/server/server.toml"
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Generate default config if it doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				fmt.Printf("Configuration already exists at: %s\n", configPath)
			} else {
				return fmt.Errorf("failed to generate default config at %s: %w", configPath, err)
			}
		} else {
			fmt.Printf("Generated default configuration at: %s\n", configPath)
		}
	} else {
		fmt.Printf("Configuration already exists at: %s\n", configPath)
	}

	return nil
}

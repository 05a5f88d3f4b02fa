package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"codetab/logger"
)

// Config is the runtime configuration the plugin passes through the
// CODETAB_CONFIG env var. Persistent settings (models, prompts) live in the
// TOML file instead.
type Config struct {
	NsID                   int    `json:"ns_id"`
	API                    string `json:"api"`   // default api kind: anthropic, openai
	Model                  string `json:"model"` // default model name or [model.X] entry
	ConfigPath             string `json:"config_path"`
	LogLevel               string `json:"log_level"` // trace, debug, info, warn, error
	DebugImmediateShutdown bool   `json:"debug_immediate_shutdown"`
}

type ServerMode string

const (
	ModeDaemon ServerMode = "daemon"
	ModeClient ServerMode = "client"
)

// setupLogger logs to a file next to the executable. Caller must defer
// logger.Close().
func setupLogger(logLevel string) *logger.LimitedLogger {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	logPath := filepath.Join(filepath.Dir(execPath), "codetab.log")

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}

	limitedLogger := logger.Init(f, logger.ParseLogLevel(logLevel))
	log.SetOutput(limitedLogger)
	return limitedLogger
}

func execDirPath(name string) string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Join(filepath.Dir(execPath), name)
}

func getSocketPath() string { return execDirPath("codetab.sock") }
func getPidPath() string    { return execDirPath("codetab.pid") }

func isDaemonRunning() (bool, int) {
	data, err := os.ReadFile(getPidPath())
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// Signal 0 probes for existence without delivering anything.
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

func loadRuntimeConfig() Config {
	var cfg Config
	raw := os.Getenv("CODETAB_CONFIG")
	if raw == "" {
		return cfg
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		log.Fatalf("invalid CODETAB_CONFIG: %v", err)
	}
	log.Printf("config: %+v", cfg)
	return cfg
}

func runDaemon() {
	cfg := loadRuntimeConfig()

	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}
	limitedLogger := setupLogger(logLevel)
	defer limitedLogger.Close()

	daemon, err := NewDaemon(cfg)
	if err != nil {
		log.Fatalf("error creating daemon: %v", err)
	}

	if err := daemon.Start(); err != nil {
		log.Fatalf("error starting daemon: %v", err)
	}
}

func runClient() {
	client := NewClient()

	if err := client.EnsureDaemonRunning(); err != nil {
		log.Fatalf("error ensuring daemon is running: %v", err)
	}

	if err := client.Connect(); err != nil {
		log.Fatalf("error connecting to daemon: %v", err)
	}
}

func main() {
	mode := ModeClient
	if len(os.Args) > 1 && os.Args[1] == "--daemon" {
		mode = ModeDaemon
	}

	switch mode {
	case ModeDaemon:
		runDaemon()
	case ModeClient:
		runClient()
	}
}

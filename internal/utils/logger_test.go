package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitLogger(t *testing.T) {
	tempDir := t.TempDir()

	config := LogConfig{
		Level:      "debug",
		LogDir:     tempDir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	if err := InitLogger(config); err != nil {
		t.Fatalf("InitLogger: %v", err)
	}

	Info("info message")
	Warn("warn message")
	Debug("debug message")
	Errorf("formatted error: %d", 42)

	time.Sleep(100 * time.Millisecond)

	mainLogPath := filepath.Join(tempDir, "tiercrawl.log")
	content, err := os.ReadFile(mainLogPath)
	if err != nil {
		t.Fatalf("read main log: %v", err)
	}
	if len(content) == 0 {
		t.Error("main log file is empty")
	}
}

func TestInitLoggerBadLevelFallsBack(t *testing.T) {
	config := DefaultLogConfig()
	config.LogDir = t.TempDir()
	config.Level = "chatty"

	if err := InitLogger(config); err != nil {
		t.Fatalf("InitLogger with unknown level: %v", err)
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("level = %q, want info", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("log dir = %q, want logs", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("rotation defaults = %d/%d/%d", config.MaxSize, config.MaxBackups, config.MaxAge)
	}
	if !config.Compress {
		t.Error("compression should default to on")
	}
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"thirdcoast.systems/haul/internal/device"
	"thirdcoast.systems/haul/internal/offline"
)

const (
	defaultServer = "http://localhost:8080"
	serverEnv     = "HAUL_SERVER"
	dataDirEnv    = "HAUL_DATA_DIR"
)

type commandContext struct {
	serverFlag  *string
	dataDirFlag *string
}

func newCommandContext(serverFlag, dataDirFlag *string) *commandContext {
	return &commandContext{serverFlag: serverFlag, dataDirFlag: dataDirFlag}
}

func (c *commandContext) server() string {
	if v := strings.TrimSpace(*c.serverFlag); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(serverEnv)); v != "" {
		return v
	}
	return defaultServer
}

func (c *commandContext) dataDir() string {
	if v := strings.TrimSpace(*c.dataDirFlag); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(dataDirEnv)); v != "" {
		return v
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "haul")
	}
	return ".haul"
}

func (c *commandContext) deviceID(ctx context.Context) (string, error) {
	return device.LoadOrCreate(ctx, c.dataDir())
}

func (c *commandContext) submitter() *offline.HTTPSubmitter {
	return offline.NewHTTPSubmitter(c.server(), nil)
}

// withQueue opens the local queue for the duration of fn.
func (c *commandContext) withQueue(ctx context.Context, fn func(*offline.Queue) error) error {
	store, err := offline.Open(ctx, c.dataDir())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(offline.NewQueue(store, c.submitter()))
}

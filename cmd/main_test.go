// ABOUTME: Tests for logger construction in the entrypoint

package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		level   string
		debugOn bool
		infoOn  bool
	}{
		"debug enables debug records":    {level: "debug", debugOn: true, infoOn: true},
		"warn suppresses info":           {level: "warn", debugOn: false, infoOn: false},
		"unknown level defaults to info": {level: "verbose", debugOn: false, infoOn: true},
		"empty level defaults to info":   {level: "", debugOn: false, infoOn: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			logger := newLogger(tc.level)

			assert.Equal(t, tc.debugOn, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tc.infoOn, logger.Enabled(ctx, slog.LevelInfo))
		})
	}
}

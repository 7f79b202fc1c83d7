package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultsToInfo(t *testing.T) {
	New(Config{Level: "bogus"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestNew_DebugLevel(t *testing.T) {
	New(Config{Level: "debug"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestNew_PrettyDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		New(Config{Level: "info", Pretty: true})
	})
}

func TestSetGlobalLogger(t *testing.T) {
	l := New(Config{Level: "warn"})
	assert.NotPanics(t, func() {
		SetGlobalLogger(l)
	})
}

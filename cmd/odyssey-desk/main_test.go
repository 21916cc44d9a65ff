package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsOverlaysEnvironment(t *testing.T) {
	t.Setenv("APP_ADDR", ":8090")
	t.Setenv("DESK_API_URL", "http://old.example/api")
	t.Setenv("DESK_WS_URL", "")

	opts, err := parseFlags([]string{"--addr", ":9999", "--api-url", "https://desk.example.com/api", "--login", "tina"})
	require.NoError(t, err)
	require.NoError(t, opts.apply())

	assert.Equal(t, ":9999", os.Getenv("APP_ADDR"))
	assert.Equal(t, "https://desk.example.com/api", os.Getenv("DESK_API_URL"))
	assert.Equal(t, "", os.Getenv("DESK_WS_URL"))
	assert.Equal(t, "tina", opts.login)
}

func TestParseFlagsRejectsUnknown(t *testing.T) {
	_, err := parseFlags([]string{"--nope"})
	assert.Error(t, err)
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Pxi     float64
	Version string
}

func TestSetGet_RoundTrips(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	require.NoError(t, c.Set("latest", snapshot{Pxi: 0.42, Version: "v1"}))

	var got snapshot
	ok, err := c.Get("latest", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.42, got.Pxi)
}

func TestGet_MissingKey(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	var got snapshot
	ok, err := c.Get("nope", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet_ExpiredEntry(t *testing.T) {
	c := New(10 * time.Millisecond)
	defer c.Close()

	require.NoError(t, c.Set("latest", snapshot{Pxi: 1}))
	time.Sleep(25 * time.Millisecond)

	var got snapshot
	ok, err := c.Get("latest", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	require.NoError(t, c.Set("latest", snapshot{Pxi: 1}))
	c.Invalidate("latest")

	var got snapshot
	ok, err := c.Get("latest", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify_DeliversTextPayload(t *testing.T) {
	var received payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL, zerolog.Nop())
	err := client.Notify(context.Background(), "regime transitioned to Stress")
	require.NoError(t, err)
	assert.Equal(t, "regime transitioned to Stress", received.Text)
}

func TestNotify_NoopWhenURLEmpty(t *testing.T) {
	client := New("", zerolog.Nop())
	err := client.Notify(context.Background(), "should not send")
	assert.NoError(t, err)
}

func TestNotify_ErrorsOnNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, zerolog.Nop())
	err := client.Notify(context.Background(), "hello")
	assert.Error(t, err)
}

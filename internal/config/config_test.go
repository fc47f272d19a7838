package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PAGE_SIZE", "")
	t.Setenv("DEDUP_WINDOW", "")
	t.Setenv("REALTIME_TRANSPORT", "")

	cfg := Load()

	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 60*time.Second, cfg.DedupWindow)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxAttachmentBytes)
	assert.Equal(t, TransportWebSocket, cfg.RealtimeTransport)
	assert.Equal(t, "chat", cfg.NATSSubjectPrefix)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PAGE_SIZE", "50")
	t.Setenv("DEDUP_WINDOW", "10s")
	t.Setenv("REALTIME_TRANSPORT", "NATS")
	t.Setenv("BACKEND_BATCH_UNREAD", "true")
	t.Setenv("BACKEND_RATE_LIMIT", "2.5")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg := Load()

	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 10*time.Second, cfg.DedupWindow)
	assert.Equal(t, TransportNATS, cfg.RealtimeTransport)
	assert.True(t, cfg.BatchUnreadCounts)
	assert.InDelta(t, 2.5, cfg.BackendRateLimit, 0.0001)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PAGE_SIZE", "many")
	t.Setenv("SEND_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 2*time.Minute, cfg.SendTimeout)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.SessionToken = ""
	require.Error(t, cfg.Validate())

	cfg.SessionToken = "token"
	require.NoError(t, cfg.Validate())

	cfg.RealtimeTransport = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

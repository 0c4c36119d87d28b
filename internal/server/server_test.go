package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/postboard/apiserver/config"
	"github.com/postboard/apiserver/internal/handlers"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	logger, _ := test.NewNullLogger()

	_, err := New(context.Background(), config.Config{Auth: config.AuthConfig{Algorithm: "HS256", TokenTTL: 1}}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestNewHTTPServer(t *testing.T) {
	handler := http.NewServeMux()

	srv := newHTTPServer(0, handler)
	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, handler, srv.Handler)
	assert.Greater(t, srv.WriteTimeout, handlers.RequestTimeout)
	assert.GreaterOrEqual(t, srv.ReadTimeout, 15*time.Second)

	srv = newHTTPServer(9090, handler)
	assert.Equal(t, ":9090", srv.Addr)
}

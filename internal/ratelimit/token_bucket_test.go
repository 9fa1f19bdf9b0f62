package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAllowRejectsBadArgs(t *testing.T) {
	var tb *TokenBucket
	_, err := tb.Allow(context.Background(), "key", 1, 1)
	require.ErrorIs(t, err, ErrNotConfigured)

	tb = &TokenBucket{}
	_, err = tb.Allow(context.Background(), "key", 1, 1)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestBucketTTL(t *testing.T) {
	// 5 tokens at 1/s refills in 5s; keep state twice as long.
	require.Equal(t, 10*time.Second, bucketTTL(1, 5))
	require.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestCastHelpers(t *testing.T) {
	require.Equal(t, int64(1), castToInt(int64(1)))
	require.Equal(t, int64(2), castToInt(2))
	require.Equal(t, int64(3), castToInt(3.7))
	require.Zero(t, castToInt("nope"))

	require.Equal(t, 1.5, castToFloat("1.5"))
	require.Equal(t, 2.0, castToFloat(int64(2)))
	require.Zero(t, castToFloat("garbage"))
}

func TestMiddlewarePassesThroughWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/orders", Middleware(nil, zap.NewNop(), 10, 5), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "ok"})
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/meterreadings/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilUploadLimiterAllows(t *testing.T) {
	var l *UploadLimiter
	assert.False(t, l.Enabled())

	res, err := l.AllowClient(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	release, err := l.AcquireUpload(context.Background())
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.NoError(t, release(context.Background()))
}

func TestNewUploadLimiterConfig(t *testing.T) {
	l, err := NewUploadLimiter(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, l)

	_, err = NewUploadLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true}})
	assert.Error(t, err, "redis address required")

	_, err = NewUploadLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled: true, RedisAddr: "localhost:6379", UploadRate: 0, UploadBurst: 1,
	}})
	assert.Error(t, err)

	_, err = NewUploadLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled: true, RedisAddr: "localhost:6379", UploadRate: 1, UploadBurst: 1, SerializeUploads: true,
	}})
	assert.Error(t, err, "lock ttl required when serializing")

	l, err = NewUploadLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled: true, RedisAddr: "localhost:6379", UploadRate: 1, UploadBurst: 5,
	}})
	require.NoError(t, err)
	assert.True(t, l.Enabled())

	release, err := l.AcquireUpload(context.Background())
	require.NoError(t, err, "serialization off never touches redis")
	assert.NoError(t, release(context.Background()))
}

func TestBuildResult(t *testing.T) {
	res := buildResult(true, 3.5, 1_700_000_000_000, 1, 5)
	assert.True(t, res.Allowed)
	assert.Equal(t, 3, res.Remaining)
	assert.Equal(t, 5, res.Limit)
	assert.Zero(t, res.RetryAfter)

	res = buildResult(false, 0.5, 1_700_000_000_000, 2, 5)
	assert.False(t, res.Allowed)
	assert.Equal(t, 250*time.Millisecond, res.RetryAfter)
	assert.Equal(t, time.UnixMilli(1_700_000_000_250), res.ResetTime)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 0))
}

func TestScriptValueConversion(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(7), toInt("7"))
	assert.Equal(t, int64(0), toInt(nil))
	assert.Equal(t, 2.5, toFloat("2.5"))
	assert.Equal(t, 3.0, toFloat(int64(3)))
	assert.Equal(t, 0.0, toFloat(struct{}{}))
}

func TestRetryStrategy(t *testing.T) {
	assert.NotNil(t, retryStrategy(0))
	assert.NotNil(t, retryStrategy(time.Second))
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/pdfmate/internal/models"
)

// unreachable points at a port nothing listens on.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestStatusChannel(t *testing.T) {
	assert.Equal(t, "file-status:f1", StatusChannel("f1"))
}

func TestOnTerminalSwallowsRedisErrors(t *testing.T) {
	client := unreachable()
	defer client.Close()

	p := NewStatusPublisher(client)
	assert.NotPanics(t, func() {
		p.OnTerminal(context.Background(), "f1", models.StatusSuccess)
	})
}

func TestCacheErrors(t *testing.T) {
	client := unreachable()
	defer client.Close()
	c := NewCache(client)

	var v bool
	err := c.Get(context.Background(), "k", &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache get k")

	assert.Error(t, c.Set(context.Background(), "k", make(chan int), time.Minute))
	assert.Error(t, c.Ping(context.Background()))
}

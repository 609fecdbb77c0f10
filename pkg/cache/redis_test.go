package cache

import (
	"os"
	"testing"
	"time"
)

// Runs only against a real server: IMGPROXY_TEST_REDIS=localhost:6379.
func TestRedis(t *testing.T) {
	addr := os.Getenv("IMGPROXY_TEST_REDIS")
	if addr == "" {
		t.Skip("IMGPROXY_TEST_REDIS not set")
	}
	c := NewRedis(RedisOptions{Addr: addr, DB: 13, KeyPrefix: "imgproxy-test:", TTL: time.Minute})
	defer c.Close()
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	exercise(t, c)
}

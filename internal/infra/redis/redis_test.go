package redis

import (
	"testing"

	"github.com/sifan077/redirector/config"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	opts := options(config.RedisConfig{})
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, "redirector", opts.ClientName)

	opts = options(config.RedisConfig{Host: "cache", Port: 6380, DB: 2, Password: "secret"})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
}

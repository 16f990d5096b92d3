package bootstrap

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-items-api/config"
)

func TestPostgresDSN_EscapesCredentials(t *testing.T) {
	dsn := postgresDSN(config.DBConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "items",
		Password: "p@ss/word",
		Name:     "items",
		SSLMode:  "require",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/items", u.Path)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss/word", password)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestResolveRedisTarget(t *testing.T) {
	t.Run("plain address", func(t *testing.T) {
		target, err := resolveRedisTarget(config.RedisConfig{URI: " localhost:6379 ", Password: "secret"})
		require.NoError(t, err)
		assert.Equal(t, redisModeDirect, target.mode)
		assert.Equal(t, []string{"localhost:6379"}, target.opts.Addrs)
		assert.Equal(t, "secret", target.opts.Password)
	})

	t.Run("url keeps credentials out of the description", func(t *testing.T) {
		target, err := resolveRedisTarget(config.RedisConfig{URI: "rediss://user:pw@cache.internal:6380/2"})
		require.NoError(t, err)
		assert.Equal(t, redisModeDirect, target.mode)
		assert.Equal(t, "cache.internal:6380", target.desc)
		assert.Equal(t, "user", target.opts.Username)
		assert.Equal(t, "pw", target.opts.Password)
		assert.Equal(t, 2, target.opts.DB)
		assert.NotNil(t, target.opts.TLSConfig)
	})

	t.Run("cluster needs nodes", func(t *testing.T) {
		_, err := resolveRedisTarget(config.RedisConfig{UseCluster: true, ClusterNodes: []string{" "}})
		require.Error(t, err)

		target, err := resolveRedisTarget(config.RedisConfig{UseCluster: true, ClusterNodes: []string{"a:7000", "b:7000"}})
		require.NoError(t, err)
		assert.Equal(t, redisModeCluster, target.mode)
		assert.Equal(t, "a:7000,b:7000", target.desc)
	})

	t.Run("sentinel needs a master name", func(t *testing.T) {
		_, err := resolveRedisTarget(config.RedisConfig{UseSentinel: true, SentinelNodes: []string{"s:26379"}})
		require.Error(t, err)

		target, err := resolveRedisTarget(config.RedisConfig{
			UseSentinel:        true,
			SentinelNodes:      []string{"s:26379"},
			SentinelMasterName: "items",
		})
		require.NoError(t, err)
		assert.Equal(t, redisModeSentinel, target.mode)
		assert.Equal(t, "items", target.opts.MasterName)
	})

	t.Run("missing uri", func(t *testing.T) {
		_, err := resolveRedisTarget(config.RedisConfig{})
		require.Error(t, err)
	})
}

package redis

import (
	"github.com/redis/go-redis/v9"
)

//go:generate mockgen -destination=mocks/redis.go -package=redismocks -source=interface.go

// Client wraps redis.UniversalClient so repositories can run against a
// single node, a cluster or a sentinel-managed primary alike.
type Client interface {
	redis.UniversalClient
}


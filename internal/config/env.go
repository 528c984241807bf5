package config

import "time"

const (
	StoreMemory = "memory"
	StoreNone   = "none"
	StoreMongo  = "mongo"
	StoreRedis  = "redis"
)

func positiveOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}

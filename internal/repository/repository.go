package repository

import (
	"fmt"

	"github.com/go-redis/redis/v8"

	"pictionary/internal/storage"
)

// 支援的存儲驅動
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Repositories struct {
	Room RoomRepository
}

// Backends 保存已建立的連線，未使用的驅動留空
type Backends struct {
	Postgres    *storage.PostgresDB
	Redis       redis.UniversalClient
	RedisPrefix string
}

// NewRepositories 依照驅動名稱選擇房間存儲實作
func NewRepositories(driver string, b Backends) (*Repositories, error) {
	switch driver {
	case DriverMemory, "":
		return &Repositories{Room: NewMemoryRoomRepository()}, nil
	case DriverPostgres:
		if b.Postgres == nil {
			return nil, fmt.Errorf("store driver %q requires a database connection", driver)
		}
		return &Repositories{Room: NewRoomRepository(b.Postgres)}, nil
	case DriverRedis:
		if b.Redis == nil {
			return nil, fmt.Errorf("store driver %q requires a redis client", driver)
		}
		return &Repositories{Room: NewRedisRoomRepository(b.Redis, b.RedisPrefix)}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

package app

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"io"
	"strings"

	"Snowz-Migrator/internal/config"
	"Snowz-Migrator/internal/events"
	"Snowz-Migrator/internal/lock"
	"Snowz-Migrator/internal/schema"
	"Snowz-Migrator/internal/storage/mysql"
	"Snowz-Migrator/internal/storage/redis"
)

// Runtime 持有根据配置创建的服务及其需要关闭的资源。
type Runtime struct {
	Service *Service
	closers []io.Closer
}

// Close 按创建的逆序释放资源。
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = stdErrors.Join(err, r.closers[i].Close())
	}
	r.closers = nil
	return err
}

// Build 根据配置选择历史、锁与事件的实现并构造 Service。
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}

	history, err := buildHistory(ctx, cfg, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}
	locker, err := buildLocker(ctx, cfg, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}
	publisher, err := buildPublisher(ctx, cfg, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Service = NewService(history,
		WithLocker(locker),
		WithPublisher(publisher),
		WithLockTTL(cfg.Lock.TTL()),
	)
	return rt, nil
}

func buildHistory(ctx context.Context, cfg *config.Config, rt *Runtime) (mysql.HistoryRepository, error) {
	switch strings.ToLower(cfg.History.Driver) {
	case "", "memory":
		return mysql.NewMemoryHistoryRepository(cfg.Runtime.DataDir)
	case "mysql":
		repo, err := mysql.NewSQLHistoryRepository(ctx, mysql.Config{DSN: cfg.History.DSN})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, repo)
		return repo, nil
	default:
		return nil, fmt.Errorf("未知的历史存储驱动: %s", cfg.History.Driver)
	}
}

func buildLocker(ctx context.Context, cfg *config.Config, rt *Runtime) (lock.Locker, error) {
	switch strings.ToLower(cfg.Lock.Driver) {
	case "", "memory":
		return lock.NewMemoryLocker(), nil
	case "redis":
		client, err := redis.NewClient(ctx, redis.Config{
			Address:  cfg.Lock.Redis.Address,
			Password: cfg.Lock.Redis.Password,
			DB:       cfg.Lock.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, client)
		return redis.NewLocker(client, cfg.Lock.Redis.Key), nil
	default:
		return nil, fmt.Errorf("未知的迁移锁驱动: %s", cfg.Lock.Driver)
	}
}

func buildPublisher(ctx context.Context, cfg *config.Config, rt *Runtime) (events.Publisher, error) {
	var publisher events.Publisher
	switch strings.ToLower(cfg.Events.Driver) {
	case "", "none":
		return events.NopPublisher{}, nil
	case "memory":
		publisher = events.NewMemoryPublisher(256)
	case "redis":
		client, err := redis.NewClient(ctx, redis.Config{
			Address:  cfg.Events.Redis.Address,
			Password: cfg.Events.Redis.Password,
			DB:       cfg.Events.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		publisher = events.NewRedisPublisher(client, cfg.Events.Redis.Key)
	case "rabbitmq":
		pub, err := events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:     cfg.Events.RabbitMQ.URL,
			Queue:   cfg.Events.RabbitMQ.Queue,
			Durable: cfg.Events.RabbitMQ.Durable,
		})
		if err != nil {
			return nil, err
		}
		publisher = pub
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Events.Driver)
	}
	rt.closers = append(rt.closers, publisher)
	return publisher, nil
}

// OpenTarget 打开迁移目标数据库，url 为空时使用配置中的 database.url。
func OpenTarget(ctx context.Context, cfg config.DatabaseConfig, url string) (Target, *sql.DB, error) {
	if strings.TrimSpace(url) == "" {
		url = cfg.URL
	}
	db, conn, err := schema.Open(ctx, url, schema.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
	})
	if err != nil {
		return Target{}, nil, err
	}
	return Target{DB: db, Dialect: conn.Dialect}, db, nil
}

// LoadTables 读取模型文件。
func LoadTables(path string) ([]schema.Table, error) {
	return schema.LoadModels(path)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Pipeflow/internal/collection"
	"github.com/shaiso/Pipeflow/internal/mq"
	"github.com/shaiso/Pipeflow/internal/repo"
)

const lockTimeout = 10 * time.Second

// ErrNoDatabase — команде нужна база данных, а она не настроена.
var ErrNoDatabase = errors.New("database is not configured (use --db-url or DB_URL)")

// Env — общие настройки и лениво открываемые подключения команд.
type Env struct {
	// DBURL — строка подключения PostgreSQL (иначе DB_URL).
	DBURL string

	// AMQPURL — адрес RabbitMQ (иначе RABBITMQ_URL).
	AMQPURL string

	// IndexPath — файл индекса коллекции без базы данных.
	IndexPath string

	JSON bool

	Out    *Output
	Logger *slog.Logger

	pool *pgxpool.Pool
	conn *mq.Connection
}

// DefaultIndexPath возвращает PIPEFLOW_INDEX или файл в каталоге настроек пользователя.
func DefaultIndexPath() string {
	if p := os.Getenv("PIPEFLOW_INDEX"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "pipeflow", "index.json")
}

func (e *Env) dsn() string {
	if e.DBURL != "" {
		return e.DBURL
	}
	return os.Getenv("DB_URL")
}

// HasDatabase сообщает, настроена ли база данных.
func (e *Env) HasDatabase() bool { return e.dsn() != "" }

// HasBroker сообщает, настроен ли RabbitMQ явно.
func (e *Env) HasBroker() bool {
	return e.AMQPURL != "" || os.Getenv("RABBITMQ_URL") != ""
}

// Pool открывает пул и создаёт схему при первом вызове.
func (e *Env) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	if e.pool != nil {
		return e.pool, nil
	}
	if !e.HasDatabase() {
		return nil, ErrNoDatabase
	}
	pool, err := repo.NewPool(ctx, e.dsn())
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	e.pool = pool
	return pool, nil
}

// Broker подключается к RabbitMQ и объявляет топологию при первом вызове.
func (e *Env) Broker(ctx context.Context) (*mq.Connection, error) {
	if e.conn != nil {
		return e.conn, nil
	}
	conn, err := mq.Dial(mq.URL(e.AMQPURL), e.Logger)
	if err != nil {
		return nil, err
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	e.conn = conn
	return conn, nil
}

// IndexStore выбирает хранилище индекса: PostgreSQL, если база настроена,
// иначе файл IndexPath.
func (e *Env) IndexStore(ctx context.Context) (collection.Store, error) {
	if e.HasDatabase() {
		pool, err := e.Pool(ctx)
		if err != nil {
			return nil, err
		}
		return repo.NewEntityRepo(pool), nil
	}
	return collection.NewFileStore(e.IndexPath), nil
}

// OpenCollection загружает индекс.
//
// Для записи сначала берётся WriterLock; release освобождает его.
// Если брокер настроен, Commit публикует index.updated.
func (e *Env) OpenCollection(ctx context.Context, write bool) (*collection.Collection, func(), error) {
	release := func() {}
	if write {
		lock, err := collection.AcquireWriterLock(ctx, e.IndexPath+".lock", lockTimeout)
		if err != nil {
			return nil, nil, err
		}
		release = func() {
			if err := lock.Release(); err != nil {
				e.Logger.Warn("failed to release index lock", "path", lock.Path(), "error", err)
			}
		}
	}

	store, err := e.IndexStore(ctx)
	if err != nil {
		release()
		return nil, nil, err
	}
	coll, err := collection.New(ctx, collection.Config{Store: store, Logger: e.Logger})
	if err != nil {
		release()
		return nil, nil, err
	}

	if write && e.HasBroker() {
		if conn, err := e.Broker(ctx); err != nil {
			e.Logger.Warn("RabbitMQ not available, index events disabled", "error", err)
		} else {
			mq.NewIndexNotifier(coll, mq.NewPublisher(conn, e.Logger), e.Logger)
		}
	}
	return coll, release, nil
}

// Close закрывает открытые подключения.
func (e *Env) Close() {
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

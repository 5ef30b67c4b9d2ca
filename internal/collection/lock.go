package collection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 100 * time.Millisecond

// WriterLock — межпроцессная блокировка единственного писателя индекса.
//
// Collection не синхронизирует доступ сама: процесс, который собирается
// менять индекс, сначала берёт WriterLock.
type WriterLock struct {
	lock *flock.Flock
}

// AcquireWriterLock берёт эксклюзивную блокировку файла path.
// Ожидает не дольше timeout, затем возвращает ErrLocked.
func AcquireWriterLock(ctx context.Context, path string, timeout time.Duration) (*WriterLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(path)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("lock acquisition failed: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &WriterLock{lock: lock}, nil
}

// Path возвращает путь файла блокировки.
func (l *WriterLock) Path() string { return l.lock.Path() }

// Release освобождает блокировку.
func (l *WriterLock) Release() error {
	return l.lock.Unlock()
}

package collection

import "errors"

// Ошибки коллекции.
var (
	// ErrEntityNotFound — сущность не найдена в индексе.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidURL — загрузчик не может открыть источник по URL.
	ErrInvalidURL = errors.New("invalid vistrail url")

	// ErrLocked — индекс уже открыт на запись другим процессом.
	ErrLocked = errors.New("collection index is locked")
)

package worker

import "errors"

// Ошибки воркера.
var (
	// ErrInvalidRequest — запрос нельзя выполнить: spec не проходит валидацию.
	ErrInvalidRequest = errors.New("invalid pipeline request")

	// ErrNoExecution — в pipeline.executed нет выполнения.
	ErrNoExecution = errors.New("message carries no execution")
)

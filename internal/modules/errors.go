package modules

import "errors"

// Ошибки реестра и встроенных модулей.
var (
	// ErrTypeNotFound — тип модуля не найден в реестре.
	ErrTypeNotFound = errors.New("module type not found")

	// ErrUnknownParent — родительский тип не зарегистрирован.
	ErrUnknownParent = errors.New("parent module type not registered")

	// ErrInvalidValue — значение не приводится к типу порта.
	ErrInvalidValue = errors.New("value does not convert to port type")

	// ErrTemplateParse — ошибка парсинга шаблона Format.
	ErrTemplateParse = errors.New("template parse error")

	// ErrTemplateRender — ошибка рендеринга шаблона Format.
	ErrTemplateRender = errors.New("template render error")

	// ErrDivisionByZero — деление на ноль в Calc.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrUnknownOperator — неизвестная операция Calc.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrNoValue — у InputPort нет ни внешнего значения, ни значения по умолчанию.
	ErrNoValue = errors.New("no value for input port")
)

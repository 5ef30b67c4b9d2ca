// Pipeflow — dataflow pipeline engine.
//
// Использование:
//
//	pipeflow [--db-url DSN] [--amqp-url URL] [--index FILE] [--json] <command> [flags]
//
// Команды:
//
//	run         Выполнить pipeline из JSON файла
//	submit      Поставить pipeline в очередь воркеру
//	types       Показать зарегистрированные типы модулей
//	executions  Журнал выполнений (нужна база данных)
//	index       Индекс коллекции: vistrail, workflow, workspace'ы
//	worker      Выполнять pipeline из очереди RabbitMQ
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Pipeflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}

// Package cli реализует команды pipeflow.
//
// Команды получают общий *Env: флаги корневой команды и лениво
// открываемые подключения (пул PostgreSQL, соединение RabbitMQ).
// Подключение открывается только той командой, которой оно нужно:
// run без флагов и index без базы данных работают локально.
//
// Индекс коллекции хранится в PostgreSQL, если задан --db-url или
// DB_URL, иначе в JSON файле --index. Команды, меняющие индекс,
// берут межпроцессную блокировку <index>.lock.
//
// Output печатает таблицу (text/tabwriter) или JSON с флагом --json.
// Данные выводятся в stdout, сообщения и логи — в stderr:
//
//	pipeflow index list --json | jq '.[].url'
package cli

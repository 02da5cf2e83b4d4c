package main

import (
	"github.com/finkg/backend/internal/server"
	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/logger"
	"github.com/finkg/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnv("LOG_FORMAT") == "json",
	})
	logger.Init(consoleLogger)

	server.Init()
}

package main

import (
	"modelrelay/Web"
	"modelrelay/driver"
	"modelrelay/misc"
	"modelrelay/toolCalling"

	"go.uber.org/zap"
)

func main() {
	misc.Init()
	logger := misc.L()
	defer logger.Sync()

	registry := toolCalling.NewRegistry()
	registry.Register(toolCalling.NewClockTool())
	registry.Register(toolCalling.NewTextStatsTool())

	d := driver.NewDriver(nil, registry, logger)

	server := Web.NewServer(d, logger)
	port := misc.GetConfigValueDefault("main_setting", "PORT", "9999")
	if err := server.StartWebServer(port); err != nil {
		logger.Fatal("web server exited", zap.Error(err))
	}
}

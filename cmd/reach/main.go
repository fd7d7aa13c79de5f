package main

import (
	"reach/cmd/handlers"
	"reach/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}

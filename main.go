package main

import (
	"context"
	"os/signal"
	"syscall"

	board "github.com/putto11262002/board/app"
)

func main() {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	app := board.New(ctx, nil)
	app.Start()
}

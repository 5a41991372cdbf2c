package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/friendgraph/backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := app.Run(ctx, os.Args[1:])
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

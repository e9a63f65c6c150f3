// board-tail follows a board server from the terminal.
//
//	board-tail [-addr URL] watch|ls|post TITLE ENTRY|rm ID
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/putto11262002/board/client"
	"github.com/putto11262002/board/core"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] watch|ls|post TITLE ENTRY|rm ID\n", os.Args[0])
	flag.PrintDefaults()
}

func mainInner() error {
	addr := flag.String("addr", "http://127.0.0.1:8080", "the board server to talk to")
	colours := flag.Bool("colours", true, "colour the board header")
	timeout := flag.Duration("timeout", 10*time.Second, "timeout for ls, post and rm")
	flag.Usage = usage
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := client.New(*addr, client.WithLogger(logger))
	if err != nil {
		return err
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "watch":
		return watch(ctx, store, logger, *colours)
	case "ls":
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		messages, err := store.QueryAll(ctx)
		if err != nil {
			return err
		}
		renderBoard(os.Stdout, core.SortMessages(messages), *colours)
		return nil
	case "post":
		if len(rest) != 2 {
			return errors.New("post takes TITLE and ENTRY")
		}
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		c := core.NewMessageListController(store, logger)
		m, err := c.Submit(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Println(m.ID)
		return nil
	case "rm":
		if len(rest) != 1 {
			return errors.New("rm takes ID")
		}
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		c := core.NewMessageListController(store, logger)
		return c.Remove(ctx, rest[0])
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// watch redraws the board on every change until ctx is done.
func watch(ctx context.Context, store core.MessageStore, logger *slog.Logger, colours bool) error {
	c := core.NewMessageListController(store, logger,
		core.WithPublisher(func(messages []core.Message) {
			// clear the screen and move the cursor home
			fmt.Print("\033[H\033[2J")
			renderBoard(os.Stdout, messages, colours)
		}),
		core.WithErrorHandler(func(err error) {
			logger.Warn(err.Error())
		}),
	)
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Stop()
	return nil
}

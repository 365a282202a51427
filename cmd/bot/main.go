package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/pingbot/internal/bot"
	"github.com/robalyx/pingbot/internal/setup"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"

	// ShutdownTimeout bounds how long in-flight pings get to report.
	ShutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "log-dir",
			Value: BotLogDir,
			Usage: "Directory for per-run log files",
		},
		&cli.BoolFlag{
			Name:  "console",
			Usage: "Mirror log output to stderr",
		},
	}

	app := &cli.Command{
		Name:   "bot",
		Usage:  "Run the ping bot",
		Flags:  flags,
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Connect to Discord and serve /ping",
				Flags:  flags,
				Action: runBot,
			},
			{
				Name:   "register",
				Usage:  "Register the slash commands and exit",
				Flags:  flags,
				Action: registerCommands,
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

func initialize(ctx context.Context, c *cli.Command) (*setup.App, *bot.Bot, error) {
	app, err := setup.InitializeApp(ctx, setup.Options{
		Component: "bot",
		LogDir:    c.String("log-dir"),
		Console:   c.Bool("console"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize application: %w", err)
	}

	discordBot, err := bot.New(app)
	if err != nil {
		app.Logger.Error("Failed to create bot", zap.Error(err))
		app.Cleanup(ctx)
		return nil, nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return app, discordBot, nil
}

func runBot(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	app, discordBot, err := initialize(ctx, c)
	if err != nil {
		return err
	}

	if err := discordBot.Start(ctx); err != nil {
		app.Logger.Error("Failed to start bot", zap.Error(err))
		discordBot.Close(context.Background())
		app.Cleanup(context.Background())
		return fmt.Errorf("failed to start bot: %w", err)
	}

	app.Logger.Info("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	discordBot.Close(shutdownCtx)
	app.Cleanup(shutdownCtx)
	return nil
}

func registerCommands(ctx context.Context, c *cli.Command) error {
	app, discordBot, err := initialize(ctx, c)
	if err != nil {
		return err
	}
	defer app.Cleanup(context.Background())
	defer discordBot.Close(context.Background())

	if err := discordBot.RegisterCommands(ctx); err != nil {
		app.Logger.Error("Failed to register commands", zap.Error(err))
		return err
	}

	app.Logger.Info("Registered commands")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/bot"
	"github.com/robalyx/sentinel/internal/setup"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
	// CLILogDir specifies where log files of operator commands are stored.
	CLILogDir = "logs/cli_logs"

	// shutdownTimeout bounds the cleanup after an interrupt.
	shutdownTimeout = 10 * time.Second
)

var ErrInvalidGuildID = errors.New("invalid guild id")

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	guildFlag := &cli.StringFlag{
		Name:     "guild",
		Aliases:  []string{"g"},
		Usage:    "Guild id",
		Required: true,
	}

	app := &cli.Command{
		Name:  "sentinel",
		Usage: "Discord moderation bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to bot.toml (searched for when unset)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Connect to Discord and process commands",
				Action: runBot,
			},
			{
				Name:  "config",
				Usage: "Inspect or edit stored guild settings",
				Commands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the settings of a guild",
						Flags:  []cli.Flag{guildFlag},
						Action: showGuildConfig,
					},
					{
						Name:   "reset",
						Usage:  "Remove the settings of a guild",
						Flags:  []cli.Flag{guildFlag},
						Action: resetGuildConfig,
					},
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runBot starts the bot and blocks until an interrupt signal is received.
func runBot(ctx context.Context, c *cli.Command) error {
	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, BotLogDir, c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		app.Cleanup(cleanupCtx)
	}()

	discordBot, err := bot.New(&app.Config.Discord, app.Store, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt signal to gracefully shutdown the bot
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	discordBot.Close()
	app.Logger.Info("Bot stopped")

	return nil
}

// showGuildConfig prints the stored settings of a guild as JSON.
func showGuildConfig(ctx context.Context, c *cli.Command) error {
	guildID, err := parseGuildID(c.String("guild"))
	if err != nil {
		return err
	}

	app, err := setup.InitializeApp(ctx, CLILogDir, c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	data, err := sonic.ConfigStd.MarshalIndent(app.Store.Get(guildID), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	fmt.Println(string(data))

	return nil
}

// resetGuildConfig removes the stored settings of a guild.
func resetGuildConfig(ctx context.Context, c *cli.Command) error {
	guildID, err := parseGuildID(c.String("guild"))
	if err != nil {
		return err
	}

	app, err := setup.InitializeApp(ctx, CLILogDir, c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	reset, err := app.Store.Reset(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to reset settings: %w", err)
	}

	if !reset {
		log.Printf("No settings stored for guild %s", guildID)
		return nil
	}

	app.Logger.Info("Reset guild settings from the command line", zap.Uint64("guild_id", uint64(guildID)))
	log.Printf("Settings of guild %s have been reset", guildID)

	return nil
}

func parseGuildID(value string) (snowflake.ID, error) {
	id, err := snowflake.Parse(value)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGuildID, value)
	}

	return id, nil
}

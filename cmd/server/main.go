package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"huddle-chat/internal"
	"huddle-chat/moderation"
	"huddle-chat/repositories"
	"huddle-chat/services"
	"huddle-chat/sink"
)

//go:embed censored/*
var censoredFolder embed.FS

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper. Its only responsibility
	// is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components and manages the lifecycle, so that
// defers (database close, index close) execute before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Full-text index (Bluge)
	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 4. Moderation
	words, err := loadCensoredWords()
	if err != nil {
		return exitRuntime, err
	}
	moderator, err := moderation.NewModerator(words, charReplacement, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderator build failed: %w", err)
	}

	// 5. Service wiring
	conversations := repositories.NewConversationRepository(db, logger, config.LimitConversations)
	index := repositories.NewSearchIndex(blugeWriter, logger, config.SearchPageSize)
	chatService := services.NewChatService(logger, conversations, index, &moderator, config.SinkTimeout)

	notifications := sink.NewNotificationSink(conversations, logger)
	chatService.Register(notifications)

	logger.Info("Chat service ready",
		"badger", config.BadgerFilepath,
		"bluge", config.BlugeFilepath,
		"censored_words", len(words))

	// 6. Wait for shutdown. The aggregate is consumed in-process; this
	// binary only hosts the storage, index, and sinks.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	undelivered := notifications.Drain()
	if len(undelivered) > 0 {
		logger.Warn("Shutting down with undelivered notifications", "count", len(undelivered))
	}
	logger.Info("Shutdown complete")
	return exitOK, nil
}

func loadCensoredWords() ([]string, error) {
	entries, err := censoredFolder.ReadDir("censored")
	if err != nil {
		return nil, fmt.Errorf("reading censored folder: %w", err)
	}
	var words []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := censoredFolder.ReadFile("censored/" + entry.Name())
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(content), "\n") {
			word := strings.TrimSpace(line)
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			words = append(words, word)
		}
	}
	return words, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/adapters/filter"
	"github.com/mikey/mailtrust/internal/di"
	"github.com/mikey/mailtrust/internal/ports"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(func(logger *zap.Logger, cli *filter.CliFilter, cacheRepo ports.CacheRepository) error {
		defer logger.Sync()
		defer cacheRepo.Stop()
		return run(flags, logger, cli)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *di.CLIFlags, logger *zap.Logger, cli *filter.CliFilter) error {
	ctx := context.Background()

	if flags.Verify != "" {
		cli.Verify(ctx, flags.Verify)
		return nil
	}

	var (
		data     []byte
		filename string
		err      error
	)
	if flags.InputFile != "" {
		logger.Debug("Reading message from file", zap.String("file", flags.InputFile))
		data, err = os.ReadFile(flags.InputFile)
		filename = filepath.Base(flags.InputFile)
	} else {
		logger.Debug("Reading message from stdin")
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	_, err = cli.Inspect(ctx, filename, data)
	return err
}

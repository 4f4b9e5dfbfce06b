package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/specialistvlad/vxgrid/internal/app"
	"github.com/specialistvlad/vxgrid/internal/cli"
)

// main is the entrypoint for the vxgrid host.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run holds the main logic so tests can drive it without exiting.
func run(outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	vxApp, err := app.NewApp(outW, appConfig)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer func() {
		if cerr := vxApp.Close(context.Background()); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return vxApp.Run(context.Background())
}

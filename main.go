package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/kapitanov/chip8/internal/disasm"
	"github.com/kapitanov/chip8/internal/emulator"
	"github.com/kapitanov/chip8/internal/hal"
	"github.com/kapitanov/chip8/internal/palette"
	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	verbose := cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	speed := cmd.Flags().Int("speed", emulator.DefaultSpeed, "instructions executed per second")
	fg := cmd.Flags().String("fg", palette.DefaultForeground, "foreground (lit pixel) color")
	bg := cmd.Flags().String("bg", palette.DefaultBackground, "background color")

	cmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		loggerOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if *verbose {
			loggerOpts.Level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		bs, err := readProgram(args[0])
		if err != nil {
			return err
		}

		colors, err := palette.Parse(*fg, *bg)
		if err != nil {
			return err
		}

		config := emulator.DefaultConfig()
		config.Speed = *speed

		machine, err := emulator.New(bs, config)
		if err != nil {
			return err
		}

		h, err := hal.New(colors, config.TimerRate)
		if err != nil {
			return fmt.Errorf("unable to initialize hal: %w", err)
		}
		defer h.Shutdown()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		for {
			err = machine.Run(ctx, h)

			if errors.Is(err, hal.ErrQuit) || errors.Is(err, context.Canceled) {
				return nil
			}

			if errors.Is(err, hal.ErrReboot) {
				slog.Info("reboot")
				continue
			}

			return err
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "disasm PATH_TO_ROM_FILE",
		Short: "Print a listing of a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bs, err := readProgram(args[0])
			if err != nil {
				return err
			}

			return disasm.Write(cmd.OutOrStdout(), bs)
		},
	})

	cmd.SetArgs(os.Args[1:])
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func readProgram(path string) ([]byte, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load file %q: %w", path, err)
	}
	return bs, nil
}

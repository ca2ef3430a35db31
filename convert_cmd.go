package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pixbatch/archive"
	"pixbatch/cancellation"
	"pixbatch/codec"
	"pixbatch/config"
	"pixbatch/models"
	"pixbatch/progress"
)

type convertOptions struct {
	format      string
	output      string
	archive     string
	resolution  string
	quality     int
	compression int
	keepAspect  bool
	quiet       bool
}

func newConvertCommand() *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <image>...",
		Short: "Convert local images into one archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := models.SettingsInput{Format: opts.format, KeepAspectRatio: opts.keepAspect}
			if cmd.Flags().Changed("quality") {
				input.Quality = &opts.quality
			}
			if cmd.Flags().Changed("compression") {
				input.Compression = &opts.compression
			}
			res, err := parseResolutionFlag(opts.resolution)
			if err != nil {
				return err
			}
			input.Resolution = res

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runConvert(ctx, cmd.ErrOrStderr(), input, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", "png", "Target format: png, jpg, webp, avif, bmp")
	flags.StringVarP(&opts.output, "output", "o", "", "Archive path (default converted<ext> in the current directory)")
	flags.StringVar(&opts.archive, "archive", "", "Archive container: zip, tar.lz4, tar.zst (default $PIXBATCH_ARCHIVE_FORMAT or zip)")
	flags.StringVarP(&opts.resolution, "resolution", "r", "", "Target box as width,height")
	flags.IntVarP(&opts.quality, "quality", "q", models.DefaultQuality, "Quality 0-100 for lossy formats")
	flags.IntVar(&opts.compression, "compression", 0, "Compression level or preset, meaning depends on the format")
	flags.BoolVar(&opts.keepAspect, "keep-aspect-ratio", false, "Fit inside the resolution box instead of stretching")
	flags.BoolVar(&opts.quiet, "quiet", false, "Do not print progress")
	return cmd
}

// parseResolutionFlag accepts "w,h" and "wxh".
func parseResolutionFlag(value string) (*models.Resolution, error) {
	if value == "" {
		return nil, nil
	}
	w, h, ok := strings.Cut(strings.ReplaceAll(strings.ToLower(value), "x", ","), ",")
	if !ok {
		return nil, fmt.Errorf("invalid resolution %q, expected width,height", value)
	}
	width, err1 := strconv.Atoi(strings.TrimSpace(w))
	height, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("invalid resolution %q, expected width,height", value)
	}
	return &models.Resolution{Width: width, Height: height}, nil
}

func readItems(paths []string) ([]models.Item, error) {
	items := make([]models.Item, 0, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		items = append(items, models.Item{Index: i, Filename: filepath.Base(p), Data: data})
	}
	return items, nil
}

func runConvert(ctx context.Context, out io.Writer, input models.SettingsInput, opts convertOptions, paths []string) error {
	settings, err := models.NewSettings(input)
	if err != nil {
		return err
	}

	archiveName := opts.archive
	if archiveName == "" {
		archiveName = config.GetDefaultArchiveFormat()
	}
	format, err := archive.ParseFormat(archiveName)
	if err != nil {
		return err
	}
	output := opts.output
	if output == "" {
		output = "converted" + format.Extension()
	}

	items, err := readItems(paths)
	if err != nil {
		return err
	}

	const session = "cli"
	registry := progress.NewRegistry()
	sink := progress.NewChannelSink(len(items) + 1)
	registry.Register(session, sink)

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for ev := range sink.Events() {
			if !opts.quiet {
				fmt.Fprintf(out, "%6.2f%%  %s\n", ev.Progress, ev.Label)
			}
		}
	}()

	tok := cancellation.NewToken()
	go func() {
		select {
		case <-ctx.Done():
			tok.Cancel()
		case <-printed:
		}
	}()

	coordinator := newCoordinator(codec.Default())
	coordinator.Progress = registry
	coordinator.Archive = format

	j := models.Job{ID: uuid.NewString(), SessionID: session, Items: items, Settings: settings}
	result, err := coordinator.Run(ctx, j, tok)
	sink.Close()
	<-printed
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, result.Archive, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Fprintf(out, "wrote %s (%d files, %s, %s mode) in %s\n", output, len(result.Files),
		humanize.Bytes(uint64(len(result.Archive))), result.Mode, result.Duration.Round(time.Millisecond))
	return nil
}

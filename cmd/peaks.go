package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drgolem/rtengine/pkg/peak"
	"github.com/drgolem/rtengine/pkg/readsource"
)

var (
	peaksOutDir string
)

// peaksCmd represents the peaks command
var peaksCmd = &cobra.Command{
	Use:   "peaks <audio_file>",
	Short: "Build a peak (waveform) file for an audio source",
	Long: `Peaks decodes an audio file once per channel and writes its pyramidal
min/max peak file next to (or under --out-dir) the source file, named
"<sourcename>-chN.peak". The peak file lets a UI draw a zoomed-out waveform
without re-decoding the whole file (§4.5).

Examples:
  # Build peak files for every channel of a source
  rtengine peaks guitar.wav

  # Write peak files to a separate cache directory
  rtengine peaks guitar.wav --out-dir .peakcache`,
	Args: cobra.ExactArgs(1),
	Run:  runPeaks,
}

func init() {
	rootCmd.AddCommand(peaksCmd)

	peaksCmd.Flags().StringVar(&peaksOutDir, "out-dir", "", "Directory to write .peak files into (defaults to the source's directory)")
}

func runPeaks(cmd *cobra.Command, args []string) {
	fileName := args[0]

	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		slog.Error("File not found", "path", fileName)
		os.Exit(1)
	}

	rs, err := readsource.Open(fileName, 0)
	if err != nil {
		slog.Error("Failed to open source", "error", err)
		os.Exit(1)
	}
	defer rs.Close()

	outDir := peaksOutDir
	if outDir == "" {
		outDir = filepath.Dir(fileName)
	}
	sourceName := filepath.Base(fileName)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		if sig, ok := <-sigChan; ok {
			slog.Info("Signal received, cancelling peak build", "signal", sig)
			cancel()
		}
	}()
	defer cancel()

	for ch := 0; ch < rs.ChannelCount(); ch++ {
		peakPath := peak.ChannelPeakPath(outDir, sourceName, ch)

		if peak.Valid(peakPath, fileName) {
			slog.Info("Peak file already up to date", "channel", ch, "path", peakPath)
			continue
		}

		slog.Info("Building peak file", "channel", ch, "path", peakPath)
		store := peak.NewStore(peakPath, rs.OutputRate())
		if err := store.BuildBackground(ctx, rs, ch); err != nil {
			slog.Error("Failed to build peak file", "channel", ch, "error", err)
			os.Exit(1)
		}
	}

	fmt.Println("Peak build complete")
}

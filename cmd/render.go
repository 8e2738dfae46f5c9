package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	wavenc "github.com/drgolem/rtengine/pkg/encoders/wav"
	"github.com/drgolem/rtengine/pkg/engineconfig"
	"github.com/drgolem/rtengine/pkg/readsource"
	"github.com/drgolem/rtengine/pkg/session"
	"github.com/drgolem/rtengine/pkg/sessiondesc"
	"github.com/drgolem/rtengine/pkg/timeref"
)

var (
	renderConfigPath string
	renderOutPath    string
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render <session.yaml>",
	Short: "Render a YAML session descriptor offline to a WAV file",
	Long: `Render loads a session descriptor, builds its tracks/clips/fades/buses,
and drives the mix graph forward one cycle at a time without an audio device,
writing the master bus straight to a WAV file.

Examples:
  # Render a session at the engine's default sample rate
  rtengine render session.yaml --out mix.wav

  # Render using a specific engine config
  rtengine render session.yaml --config engine.yaml --out mix.wav`,
	Args: cobra.ExactArgs(1),
	Run:  runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderConfigPath, "config", "", "Engine config YAML (defaults if omitted)")
	renderCmd.Flags().StringVar(&renderOutPath, "out", "render.wav", "Output WAV file path")
}

func runRender(cmd *cobra.Command, args []string) {
	sessionPath := args[0]

	cfg := engineconfig.Default()
	if renderConfigPath != "" {
		loaded, err := engineconfig.Load(renderConfigPath)
		if err != nil {
			slog.Error("Failed to load engine config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	doc, err := sessiondesc.Load(sessionPath)
	if err != nil {
		slog.Error("Failed to load session descriptor", "error", err)
		os.Exit(1)
	}

	var opened []*readsource.ReadSource
	openSource := func(path string) (*readsource.ReadSource, error) {
		rs, err := readsource.Open(path, cfg.Device.SampleRate)
		if err != nil {
			return nil, err
		}
		rs.AllocateRing(cfg.Ring.SlotCount, cfg.Ring.FramesPerSlot)
		rs.SetActive(true)
		opened = append(opened, rs)
		return rs, nil
	}
	defer func() {
		for _, rs := range opened {
			if err := rs.Close(); err != nil {
				slog.Warn("Failed to close read source", "file", rs.FileName(), "error", err)
			}
		}
	}()

	sheet, err := sessiondesc.Build(doc, cfg.Device.CycleSize, openSource)
	if err != nil {
		slog.Error("Failed to build sheet", "error", err)
		os.Exit(1)
	}

	renderLength := longestClipEnd(sheet)
	if renderLength <= 0 {
		slog.Error("Session has no clips to render")
		os.Exit(1)
	}
	totalFrames := renderLength.ToFrames(cfg.Device.SampleRate)

	out, err := wavenc.Create(renderOutPath, totalFrames, cfg.Device.Channels, cfg.Device.SampleRate, false)
	if err != nil {
		slog.Error("Failed to open output WAV", "error", err)
		os.Exit(1)
	}

	slog.Info("Render starting",
		"session", sessionPath,
		"out", renderOutPath,
		"sample_rate", cfg.Device.SampleRate,
		"total_frames", totalFrames)

	transport := session.NewTransport(cfg.Device.CycleSize, cfg.Device.SampleRate)
	transport.Start()

	framesRendered := int64(0)
	for framesRendered < totalFrames {
		// Offline render has no background disk-I/O thread: pull every
		// registered source's ring forward synchronously before mixing.
		for _, rs := range opened {
			for rs.FillOneSlot() {
			}
		}

		t0, t1, n, ok := transport.Advance()
		if !ok {
			break
		}
		if err := sheet.Process(t0, t1, n); err != nil {
			slog.Error("Mix cycle failed", "error", err)
			os.Exit(1)
		}

		remaining := totalFrames - framesRendered
		if int64(n) > remaining {
			n = int(remaining)
		}
		if err := out.Write(sheet.MixBus(), n); err != nil {
			slog.Error("Failed to write rendered audio", "error", err)
			os.Exit(1)
		}
		framesRendered += int64(n)
	}

	if err := out.Close(); err != nil {
		slog.Error("Failed to finalize output WAV", "error", err)
		os.Exit(1)
	}

	slog.Info("Render complete", "frames_written", out.Written(), "out", renderOutPath)
}

// longestClipEnd finds the latest TrackStart+Length across every clip in
// the sheet, the natural render length for an offline bounce.
func longestClipEnd(sheet *session.Sheet) timeref.TimeRef {
	var end timeref.TimeRef
	for _, t := range sheet.Tracks {
		for _, c := range t.Clips {
			e := c.TrackStart + c.Length
			if e > end {
				end = e
			}
		}
	}
	return end
}

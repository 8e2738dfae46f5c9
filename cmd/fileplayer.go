package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"
)

var (
	// Flags for playlist command
	playlistDeviceIdx int
	playlistRingSlots int
	playlistFrames    int
	playlistVerbose   bool
)

// playlistCmd represents the playlist command
var playlistCmd = &cobra.Command{
	Use:   "playlist <audio_file> [audio_file...]",
	Short: "Play multiple audio files sequentially",
	Long: `Playlist plays a list of files one after another, opening each as its
own single-track sheet through the same session.Runtime/audiodevice pump
"play" uses for one file, rather than keeping a decode loop running across
files: each file gets a fresh Runtime and PortAudio stream, torn down
before the next one opens (§9 "Startup order is fixed").

Examples:
  # Play multiple files
  rtengine playlist song1.mp3 song2.flac song3.wav

  # Play all MP3 files in current directory
  rtengine playlist *.mp3

  # Use specific device with verbose output
  rtengine playlist -d 0 -v music/*.flac

  # Use a larger ring for better stability on a slow disk
  rtengine playlist --ring-slots 64 *.wav

Supported Formats:
  MP3:  .mp3 (16-bit lossy)
  FLAC: .flac, .fla (16/24/32-bit lossless)
  WAV:  .wav (8/16/24/32-bit PCM)`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPlaylist,
}

func init() {
	rootCmd.AddCommand(playlistCmd)

	playlistCmd.Flags().IntVarP(&playlistDeviceIdx, "device", "d", 1, "Audio output device index")
	playlistCmd.Flags().IntVar(&playlistRingSlots, "ring-slots", 32, "Read source ring slot count")
	playlistCmd.Flags().IntVarP(&playlistFrames, "frames", "f", 512, "Audio frames per cycle")
	playlistCmd.Flags().BoolVarP(&playlistVerbose, "verbose", "v", false, "Verbose output (debug logging)")
}

func runPlaylist(cmd *cobra.Command, args []string) {
	logLevel := slog.LevelInfo
	if playlistVerbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	files := args

	slog.Info("Initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	slog.Info("PortAudio initialized", "version", portaudio.GetVersion(),
		"device_index", playlistDeviceIdx, "ring_slots", playlistRingSlots,
		"frames_per_cycle", playlistFrames, "file_count", len(files))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	const sampleRate = 48000
	const channels = 2

	interrupted := false
	for i, fileName := range files {
		if interrupted {
			break
		}

		slog.Info("Playing file", "index", i+1, "total", len(files), "file", fileName)

		rt, device, trackID, stop, err := playOneFile(fileName, sampleRate, channels, playlistFrames, playlistRingSlots, playlistDeviceIdx)
		if err != nil {
			slog.Error("Failed to open file", "file", fileName, "error", err)
			continue
		}

		rt.Transport.Start()
		if err := device.Start(); err != nil {
			slog.Error("Failed to start playback", "file", fileName, "error", err)
			stop()
			continue
		}

		done := make(chan struct{})
		go watchForEnd(rt, trackID, done)

		statusDone := make(chan struct{})
		go monitorPlayback(device, statusDone)

		select {
		case <-done:
			slog.Info("File completed", "file", fileName)
		case sig := <-sigChan:
			slog.Info("Signal received, stopping", "signal", sig)
			interrupted = true
		}
		close(statusDone)
		stop()
	}

	if interrupted {
		slog.Info("Playback interrupted")
	} else {
		slog.Info("All files completed", "total", len(files))
	}

	slog.Info("Exiting")
}

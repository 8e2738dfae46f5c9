package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/drgolem/rtengine/pkg/audiodevice"
	"github.com/drgolem/rtengine/pkg/clip"
	"github.com/drgolem/rtengine/pkg/idgen"
	"github.com/drgolem/rtengine/pkg/readsource"
	"github.com/drgolem/rtengine/pkg/session"
	"github.com/drgolem/rtengine/pkg/timeref"
	"github.com/drgolem/rtengine/pkg/track"
	"github.com/drgolem/rtengine/pkg/types"
)

const (
	version = "1.0.0"
)

var (
	deviceIdx   int
	ringSlots   int
	frames      int
	showVersion bool
	verbose     bool
)

// playerCmd represents the player command
var playerCmd = &cobra.Command{
	Use:   "play <audio_file>",
	Short: "Play a single audio file (MP3, FLAC, WAV) through the engine",
	Long: `Play wraps one file in a single-track, single-clip sheet and drives it
through the same session.Runtime/audiodevice pump "live" uses for a full
session, rather than a standalone decode loop: a one-clip sheet is still a
sheet (§4.9), so this command exercises the real mix graph at its smallest
possible size instead of duplicating a separate playback path.

Examples:
  # Play an MP3 file
  rtengine play music.mp3

  # Play a FLAC file with a specific device
  rtengine play --device 0 music.flac

  # Play a WAV file
  rtengine play audio.wav

  # Use a larger ring for better stability on a slow disk
  rtengine play --ring-slots 64 music.mp3

Supported Formats:
  MP3:  .mp3 (16-bit lossy)
  FLAC: .flac (16/24/32-bit lossless)
  WAV:  .wav (8/16/24/32-bit PCM)`,
	Args: cobra.ExactArgs(1),
	Run:  runPlayer,
}

func init() {
	rootCmd.AddCommand(playerCmd)

	playerCmd.Flags().IntVarP(&deviceIdx, "device", "d", 1, "Audio output device index")
	playerCmd.Flags().IntVar(&ringSlots, "ring-slots", 32, "Read source ring slot count")
	playerCmd.Flags().IntVarP(&frames, "frames", "f", 512, "Audio frames per cycle")
	playerCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
	playerCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
}

func runPlayer(cmd *cobra.Command, args []string) {
	if showVersion {
		fmt.Printf("rtengine play v%s\n", version)
		os.Exit(0)
	}

	fileName := args[0]

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		slog.Error("File not found", "path", fileName)
		os.Exit(1)
	}

	slog.Info("Initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	const sampleRate = 48000
	const channels = 2

	rt, device, trackID, stop, err := playOneFile(fileName, sampleRate, channels, frames, ringSlots, deviceIdx)
	if err != nil {
		slog.Error("Failed to start playback", "error", err)
		os.Exit(1)
	}
	defer stop()

	slog.Info("Starting playback", "file", fileName)
	rt.Transport.Start()
	if err := device.Start(); err != nil {
		slog.Error("Failed to start audio device", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go watchForEnd(rt, trackID, done)

	statusDone := make(chan struct{})
	go monitorPlayback(device, statusDone)

	select {
	case <-done:
		slog.Info("Playback completed successfully")
	case sig := <-sigChan:
		slog.Info("Signal received, stopping playback", "signal", sig)
	}
	close(statusDone)

	slog.Info("Exiting")
}

// playOneFile opens path as a single-track, single-clip sheet and starts
// the disk-I/O scheduler feeding it, returning the runtime, the stopped
// audio device, the new track's id (for watchForEnd) and a cleanup func.
// The caller is responsible for starting both the transport and the
// device.
func playOneFile(path string, sampleRate, channels, cycleFrames, ringSlots, deviceIdx int) (*session.Runtime, *audiodevice.Device, string, func(), error) {
	rt := session.NewRuntime(session.Config{
		SheetName:        "play",
		CycleFrames:      cycleFrames,
		OutputRate:       sampleRate,
		CommandCapacity:  16,
		DisposalCapacity: 16,
		InfoCapacity:     16,
		TickBudget:       5 * time.Millisecond,
		TickPeriod:       cycleFrameDuration(cycleFrames, sampleRate) / 2,
	})

	rs, err := readsource.Open(path, sampleRate)
	if err != nil {
		return nil, nil, "", nil, fmt.Errorf("open %s: %w", path, err)
	}
	rs.AllocateRing(ringSlots, cycleFrames)
	rs.SetActive(true)
	sourceID := idgen.NewSourceID()
	rt.Scheduler.RegisterReadSource(sourceID, rs)

	trackID := idgen.NewTrackID()
	tr := track.New(trackID, path, cycleFrames)
	tr.PostSends = []string{session.MasterBusID}
	length := rs.Length()
	if length == timeref.Invalid {
		length = timeref.FromFrames(1<<40, sampleRate) // effectively unbounded for stream sources
	}
	c := clip.New(idgen.NewClipID(), rs, 0, length, 0)
	tr.Clips = append(tr.Clips, c)
	rt.Sheet.AddTrack(tr)

	schedCtx, cancelSched := context.WithCancel(context.Background())
	go rt.Scheduler.Run(schedCtx)

	device, err := audiodevice.Open(audiodevice.Config{
		DeviceIndex:     deviceIdx,
		FramesPerBuffer: cycleFrames,
		SampleRate:      sampleRate,
		Channels:        channels,
		Label:           path,
	}, rt)
	if err != nil {
		cancelSched()
		rt.Scheduler.Unregister(sourceID)
		rs.Close()
		return nil, nil, "", nil, fmt.Errorf("open audio device: %w", err)
	}

	stop := func() {
		rt.Transport.Stop()
		if err := device.Stop(); err != nil {
			slog.Warn("Failed to stop audio device cleanly", "error", err)
		}
		cancelSched()
		rt.Scheduler.Unregister(sourceID)
		if err := rs.Close(); err != nil {
			slog.Warn("Failed to close read source", "file", path, "error", err)
		}
	}
	return rt, device, trackID, stop, nil
}

// watchForEnd closes done once the transport has advanced past the
// single clip's length, so `play`/`playlist` exit on their own at end of
// file instead of only ever stopping on a signal.
func watchForEnd(rt *session.Runtime, trackID string, done chan<- struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		t := rt.Sheet.FindTrack(trackID)
		if t == nil || len(t.Clips) == 0 {
			close(done)
			return
		}
		c := t.Clips[0]
		if rt.Transport.Position() >= c.TrackStart+c.Length {
			close(done)
			return
		}
	}
}

func cycleFrameDuration(cycleFrames, sampleRate int) time.Duration {
	return time.Duration(cycleFrames) * time.Second / time.Duration(sampleRate)
}

// monitorPlayback logs playback status every 2 seconds for any
// types.PlaybackMonitor, until done is closed.
func monitorPlayback(monitor types.PlaybackMonitor, done chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			status := monitor.GetPlaybackStatus()
			playedSeconds := float64(status.PlayedSamples) / float64(status.SampleRate)
			bufferedSeconds := float64(status.BufferedSamples) / float64(status.SampleRate)
			slog.Debug("Playback status",
				"file", status.FileName,
				"played", fmt.Sprintf("%.3fs", playedSeconds),
				"buffered", fmt.Sprintf("%.3fs", bufferedSeconds),
				"elapsed", status.ElapsedTime.Round(time.Millisecond))
		case <-done:
			return
		}
	}
}

package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/drgolem/rtengine/pkg/audiodevice"
	"github.com/drgolem/rtengine/pkg/engineconfig"
	"github.com/drgolem/rtengine/pkg/idgen"
	"github.com/drgolem/rtengine/pkg/readsource"
	"github.com/drgolem/rtengine/pkg/session"
	"github.com/drgolem/rtengine/pkg/sessiondesc"
)

var (
	liveConfigPath string
	liveDeviceIdx  int
)

// liveCmd represents the live command
var liveCmd = &cobra.Command{
	Use:   "live <session.yaml>",
	Short: "Play a YAML session descriptor live through an audio device",
	Long: `Live loads a session descriptor and drives it through the full
realtime engine: a background disk-I/O scheduler keeps every clip's source
ring fed while a PortAudio output stream pulls one mixed cycle at a time
from the transport-driven sheet (§4.4, §5, §9).

Examples:
  # Play a session through the default output device
  rtengine live session.yaml

  # Play through a specific device, with a custom engine config
  rtengine live session.yaml --device 0 --config engine.yaml`,
	Args: cobra.ExactArgs(1),
	Run:  runLive,
}

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().StringVar(&liveConfigPath, "config", "", "Engine config YAML (defaults if omitted)")
	liveCmd.Flags().IntVarP(&liveDeviceIdx, "device", "d", 1, "Audio output device index")
}

func runLive(cmd *cobra.Command, args []string) {
	sessionPath := args[0]

	cfg := engineconfig.Default()
	if liveConfigPath != "" {
		loaded, err := engineconfig.Load(liveConfigPath)
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

	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	rt := session.NewRuntime(session.Config{
		SheetName:        doc.Sheet.Name,
		CycleFrames:      cfg.Device.CycleSize,
		OutputRate:       cfg.Device.SampleRate,
		CommandCapacity:  64,
		DisposalCapacity: 64,
		InfoCapacity:     64,
		TickBudget:       cfg.DiskIO.TickBudget(),
		TickPeriod:       cfg.DiskIO.TickPeriod(),
	})

	// schedulerIDs tracks the id each opened source was registered under,
	// since the same file path may back more than one clip (§9 "a
	// ReadSource may be referenced by multiple clips"); the scheduler's
	// registry key must be unique per opened instance, not per path.
	var opened []*readsource.ReadSource
	schedulerIDs := make(map[*readsource.ReadSource]string)
	openSource := func(path string) (*readsource.ReadSource, error) {
		rs, err := readsource.Open(path, cfg.Device.SampleRate)
		if err != nil {
			return nil, err
		}
		rs.AllocateRing(cfg.Ring.SlotCount, cfg.Ring.FramesPerSlot)
		rs.SetActive(true)
		id := idgen.NewSourceID()
		rt.Scheduler.RegisterReadSource(id, rs)
		schedulerIDs[rs] = id
		opened = append(opened, rs)
		return rs, nil
	}
	defer func() {
		for _, rs := range opened {
			rt.Scheduler.Unregister(schedulerIDs[rs])
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
	rt.Sheet = sheet

	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	go rt.Scheduler.Run(schedCtx)

	device, err := audiodevice.Open(audiodevice.Config{
		DeviceIndex:     liveDeviceIdx,
		FramesPerBuffer: cfg.Device.CycleSize,
		SampleRate:      cfg.Device.SampleRate,
		Channels:        cfg.Device.Channels,
		Label:           doc.Sheet.Name,
	}, rt)
	if err != nil {
		slog.Error("Failed to open audio device", "error", err)
		os.Exit(1)
	}

	if err := device.Start(); err != nil {
		slog.Error("Failed to start audio device", "error", err)
		os.Exit(1)
	}
	rt.Transport.Start()

	slog.Info("Live playback started", "session", sessionPath, "device", liveDeviceIdx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Signal received, stopping playback")
	rt.Transport.Stop()
	if err := device.Stop(); err != nil {
		slog.Warn("Failed to stop audio device cleanly", "error", err)
	}
}

// Package audiodevice adapts the teacher's PortAudio binding
// (pkg/audioplayer) into the engine's actual realtime collaborator: a
// pre-allocated output bus and sample clock that the engine is handed
// and told to fill (§0 Non-goals "hardware driver binding remains an
// external collaborator"). Unlike audioplayer, which decodes a file
// straight to PortAudio, Device drives session.Runtime one cycle at a
// time and writes the Runtime's mixed stereo bus out.
package audiodevice

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/rtengine/pkg/audioframe"
	"github.com/drgolem/rtengine/pkg/audioframeringbuffer"
	"github.com/drgolem/rtengine/pkg/clip"
	"github.com/drgolem/rtengine/pkg/command"
	"github.com/drgolem/rtengine/pkg/pcm"
	"github.com/drgolem/rtengine/pkg/plugin"
	"github.com/drgolem/rtengine/pkg/session"
	"github.com/drgolem/rtengine/pkg/track"
	"github.com/drgolem/rtengine/pkg/types"
)

// meterCapacity is the number of past cycles' worth of metering frames
// kept for a future level-meter consumer (§0 Non-goals "GUI... remains an
// external collaborator") to drain; once it is full, the pump's write of
// the newest cycle is rejected and that cycle is dropped, so a slow
// consumer loses recent frames but never stalls the pump.
const meterCapacity = 64

// Config mirrors audioplayer.Config's fields relevant to output-only
// playback driven by a Runtime instead of a decoder.
type Config struct {
	DeviceIndex     int
	FramesPerBuffer int
	SampleRate      int
	Channels        int
	Label           string // optional, surfaced as PlaybackStatus.FileName
}

// Device owns the PortAudio stream and the goroutine that repeatedly
// pulls one cycle from a session.Runtime and writes it to hardware.
// It never touches audio data owned by another thread except through
// Runtime's own command/dispose queues (§5).
type Device struct {
	cfg    Config
	stream *portaudio.PaStream
	rt     *session.Runtime

	stopChan  chan struct{}
	wg        sync.WaitGroup
	stopped   atomic.Bool
	startedAt time.Time

	scratch       [][]float32
	meter         *audioframeringbuffer.CycleFrameRingBuffer
	playedSamples atomic.Uint64
}

// Open creates and opens a PortAudio output stream for cfg, without
// starting playback.
func Open(cfg Config, rt *session.Runtime) (*Device, error) {
	outParams := portaudio.PaStreamParameters{
		DeviceIndex:  cfg.DeviceIndex,
		ChannelCount: cfg.Channels,
		SampleFormat: portaudio.SampleFmtInt16,
	}
	stream, err := portaudio.NewStream(outParams, float64(cfg.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("audiodevice: create stream: %w", err)
	}
	if err := stream.Open(cfg.FramesPerBuffer); err != nil {
		return nil, fmt.Errorf("audiodevice: open stream: %w", err)
	}
	return &Device{
		cfg:      cfg,
		stream:   stream,
		rt:       rt,
		stopChan: make(chan struct{}),
		scratch: [][]float32{
			make([]float32, cfg.FramesPerBuffer),
			make([]float32, cfg.FramesPerBuffer),
		},
		meter: audioframeringbuffer.New(meterCapacity),
	}, nil
}

// DrainMeterFrames returns up to n buffered CycleFrames of the mixed
// output, each stamped with the transport position and peak level the
// realtime thread computed for that cycle; while the buffer is full the
// newest cycles are dropped rather than ever blocking the pump (§5 "realtime
// thread never blocks"). A level meter or other monitoring consumer
// drains this from a non-realtime goroutine.
func (d *Device) DrainMeterFrames(n int) []audioframe.CycleFrame {
	frames, err := d.meter.Read(n)
	if err != nil {
		return nil
	}
	return frames
}

// Start starts the output stream and the cycle-pump goroutine. The
// engine's transport must already be running for audio to flow; while
// stopped, Device writes silence so the stream never underruns.
func (d *Device) Start() error {
	if err := d.stream.StartStream(); err != nil {
		return fmt.Errorf("audiodevice: start stream: %w", err)
	}
	d.startedAt = time.Now()
	d.wg.Add(1)
	go d.pump()
	slog.Info("audio device started",
		"sample_rate", d.cfg.SampleRate,
		"channels", d.cfg.Channels,
		"frames_per_buffer", d.cfg.FramesPerBuffer)
	return nil
}

// Stop halts the cycle pump and closes the stream.
func (d *Device) Stop() error {
	if !d.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(d.stopChan)
	d.wg.Wait()

	if err := d.stream.StopStream(); err != nil {
		slog.Warn("audiodevice: stop stream failed", "error", err)
	}
	if err := d.stream.Close(); err != nil {
		slog.Warn("audiodevice: close stream failed", "error", err)
	}
	slog.Info("audio device stopped")
	return nil
}

// pump is the realtime-facing loop: drain control commands, advance the
// transport, mix the sheet, and write the resulting bus out.
// PaStream.Write blocks until PortAudio is ready for the next buffer,
// which paces this loop the same way the hardware callback would.
func (d *Device) pump() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			return
		default:
		}

		for ch := range d.scratch {
			for i := range d.scratch[ch] {
				d.scratch[ch][i] = 0
			}
		}

		if err := d.rt.RunCycle(d.applyCommand); err != nil {
			slog.Error("audiodevice: cycle failed", "error", err)
		}

		bus := d.rt.Sheet.MixBus()
		out, n := bus, d.cfg.FramesPerBuffer
		if bus == nil || len(bus) < 2 || len(bus[0]) < n || d.rt.Transport.State() != session.StateRunning {
			// Transport not running (the master bus then still holds the
			// last mixed cycle), or the sheet hasn't grown its master bus
			// to a full cycle yet: write silence instead of a stale,
			// short or nil buffer so the stream never reads garbage.
			out = d.scratch
		}

		buf := pcm.PlanarFloat32ToInterleavedInt16(out, n)

		d.meter.Write([]audioframe.CycleFrame{{
			Format: audioframe.Format{
				SampleRate:    uint32(d.cfg.SampleRate),
				Channels:      uint8(d.cfg.Channels),
				BitsPerSample: 16,
			},
			Position:     d.rt.Transport.Position(),
			Peak:         audioframe.PeakFloat32(out, n),
			SamplesCount: uint16(n),
			Audio:        buf,
		}})

		if err := d.stream.Write(n, buf); err != nil {
			slog.Warn("audiodevice: write underrun", "error", err)
		}
		d.playedSamples.Add(uint64(n))
	}
}

// GetPlaybackStatus implements types.PlaybackMonitor: a snapshot of how
// much audio has actually reached the device, how much the metering tap
// still has buffered, and how long the stream has been running, for a
// CLI status line or future GUI collaborator (§0 Non-goals).
func (d *Device) GetPlaybackStatus() types.PlaybackStatus {
	var buffered uint64
	if d.meter != nil {
		buffered = d.meter.AvailableRead() * uint64(d.cfg.FramesPerBuffer)
	}
	return types.PlaybackStatus{
		FileName:        d.cfg.Label,
		SampleRate:      d.cfg.SampleRate,
		Channels:        d.cfg.Channels,
		BitsPerSample:   16,
		FramesPerBuffer: d.cfg.FramesPerBuffer,
		PlayedSamples:   d.playedSamples.Load(),
		BufferedSamples: buffered,
		ElapsedTime:     time.Since(d.startedAt),
	}
}

// applyCommand is the realtime thread's half of the command protocol
// (§5): it mutates the live sheet/track graph in response to a
// control-thread command and, for removals, confirms disposal only
// after it has actually detached the resource from the live graph it
// keeps iterating ("lockless remove": disposal is confirmed once the
// realtime thread no longer references the resource, never before).
func (d *Device) applyCommand(cmd command.Command) {
	switch cmd.Kind {
	case command.KindTransportStart:
		d.rt.Transport.Start()
	case command.KindTransportStop:
		d.rt.Transport.Stop()
	case command.KindSeek:
		// Live seek (§8 scenario 2): the transport position updates
		// immediately; reconciling each read source's ring to the new
		// location is the disk-I/O scheduler's job, triggered the next
		// time a clip's pull misses the ring (ReconcileSeek).
		d.rt.Transport.Seek(cmd.Position)

	case command.KindAddTrack:
		if t, ok := cmd.Track.(*track.Track); ok {
			d.rt.Sheet.AddTrack(t)
		}
	case command.KindRemoveTrack:
		if d.rt.Sheet.RemoveTrack(cmd.TrackID) {
			d.rt.Commands.Disposals.TryPush(command.Disposed{Reason: command.DisposeTrackRemoved, ID: cmd.TrackID})
		}

	case command.KindAddClip:
		if t := d.rt.Sheet.FindTrack(cmd.TrackID); t != nil {
			if c, ok := cmd.Clip.(*clip.Clip); ok {
				t.Clips = append(t.Clips, c)
			}
		}
	case command.KindRemoveClip:
		if t := d.rt.Sheet.FindTrack(cmd.TrackID); t != nil && t.RemoveClip(cmd.ClipID) {
			d.rt.Commands.Disposals.TryPush(command.Disposed{Reason: command.DisposeClipRemoved, ID: cmd.ClipID})
		}

	case command.KindAddPlugin:
		if chain := d.resolveChain(cmd); chain != nil {
			if node, ok := cmd.Plugin.(plugin.Node); ok {
				if cmd.Flag {
					chain.AddPostFader(cmd.PluginID, node)
				} else {
					chain.AddPreFader(cmd.PluginID, node)
				}
			}
		}
	case command.KindRemovePlugin:
		if chain := d.resolveChain(cmd); chain != nil {
			if err := chain.Remove(cmd.PluginID); err == nil {
				d.rt.Commands.Disposals.TryPush(command.Disposed{Reason: command.DisposePluginRemoved, ID: cmd.PluginID})
			}
		}

	case command.KindSetGain:
		if cmd.ClipID != "" {
			if t := d.rt.Sheet.FindTrack(cmd.TrackID); t != nil {
				if c := t.FindClip(cmd.ClipID); c != nil {
					c.Gain = cmd.Gain
				}
			}
		} else if t := d.rt.Sheet.FindTrack(cmd.TrackID); t != nil {
			t.Chain.Envelope().AddPoint(0, cmd.Gain)
		}
	case command.KindSetMute:
		if cmd.ClipID != "" {
			if t := d.rt.Sheet.FindTrack(cmd.TrackID); t != nil {
				if c := t.FindClip(cmd.ClipID); c != nil {
					c.Mute = cmd.Flag
				}
			}
		} else if t := d.rt.Sheet.FindTrack(cmd.TrackID); t != nil {
			t.Mute = cmd.Flag
		}
	case command.KindSetSolo:
		if t := d.rt.Sheet.FindTrack(cmd.TrackID); t != nil {
			t.Solo = cmd.Flag
		}
	case command.KindSetArm:
		if t := d.rt.Sheet.FindTrack(cmd.TrackID); t != nil {
			t.Armed = cmd.Flag
		}
	}
}

// resolveChain returns the plugin chain a KindAddPlugin/KindRemovePlugin
// command targets: the clip's chain if ClipID is set, otherwise the
// track's.
func (d *Device) resolveChain(cmd command.Command) *plugin.Chain {
	t := d.rt.Sheet.FindTrack(cmd.TrackID)
	if t == nil {
		return nil
	}
	if cmd.ClipID == "" {
		return t.Chain
	}
	if c := t.FindClip(cmd.ClipID); c != nil {
		return c.Chain
	}
	return nil
}

package session

import (
	"time"

	"github.com/drgolem/rtengine/pkg/command"
	"github.com/drgolem/rtengine/pkg/diskio"
)

// Runtime bundles everything one engine instance needs: the transport
// clock, the active sheet, the disk-I/O scheduler and the control<->
// realtime command bus. It replaces the former global singletons (§9
// "Global singletons") with a single root struct constructed once at
// startup and passed by reference; per-thread handles are split views
// of the fields they actually touch (the realtime thread only ever
// reaches Sheet and Commands, never Scheduler or Info directly).
//
// Startup order is fixed: load config, build Runtime, open the audio
// device, then load a project into it (§9).
type Runtime struct {
	Transport *Transport
	Sheet     *Sheet
	Scheduler *diskio.Scheduler
	Commands  *command.Bus
	Info      *InfoQueue
}

// Config bundles the values NewRuntime needs from startup configuration.
type Config struct {
	SheetName        string
	CycleFrames      int
	OutputRate       int
	CommandCapacity  int
	DisposalCapacity int
	InfoCapacity     int
	TickBudget       time.Duration
	TickPeriod       time.Duration
}

// NewRuntime constructs a Runtime from cfg. The returned Runtime's
// transport starts stopped; callers must register sources with
// Scheduler and build a Sheet's tracks before calling Transport.Start.
func NewRuntime(cfg Config) *Runtime {
	return &Runtime{
		Transport: NewTransport(cfg.CycleFrames, cfg.OutputRate),
		Sheet:     NewSheet(cfg.SheetName),
		Scheduler: diskio.New(cfg.TickBudget, cfg.TickPeriod),
		Commands:  command.NewBus(cfg.CommandCapacity, cfg.DisposalCapacity),
		Info:      NewInfoQueue(cfg.InfoCapacity),
	}
}

// RunCycle drives one realtime cycle: it drains pending control commands,
// advances the transport, and mixes the sheet if the transport is
// running. Intended to be called from the realtime audio callback once
// per audio-device buffer.
func (rt *Runtime) RunCycle(apply func(command.Command)) error {
	rt.Commands.Commands.DrainAll(apply)

	t0, t1, n, ok := rt.Transport.Advance()
	if !ok {
		return nil
	}
	return rt.Sheet.Process(t0, t1, n)
}

// Package shell provides the interactive command line of pod-host.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/Pix4D/pod-arsdkengine/internal/simdevice"
	"github.com/Pix4D/pod-arsdkengine/pkg/connection"
	"github.com/Pix4D/pod-arsdkengine/pkg/device"
	"github.com/Pix4D/pod-arsdkengine/pkg/peripheral"
	"github.com/Pix4D/pod-arsdkengine/pkg/pilotingitf"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Target is what the shell drives.
type Target struct {
	Ctrl       *device.Controller
	Network    *peripheral.Network
	Recorder   *peripheral.Recorder
	Gimbal     *peripheral.Gimbal
	Stereo     *peripheral.StereoVision
	FollowMe   *pilotingitf.FollowMe
	Connection *connection.Manager

	// Sim is the built-in simulated device, nil when connected to a drone.
	Sim *simdevice.Device
}

// Shell is the interactive command loop.
type Shell struct {
	rl  *readline.Instance
	out io.Writer
	t   Target
}

// New creates a shell on the terminal.
func New() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pod> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl, out: rl.Stdout()}, nil
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("status"),
	readline.PcItem("policy",
		readline.PcItem("ALL"), readline.PcItem("CELLULAR"),
		readline.PcItem("WLAN"), readline.PcItem("AUTOMATIC")),
	readline.PcItem("bitrate"),
	readline.PcItem("pipelines"),
	readline.PcItem("stab", readline.PcItem("yaw"), readline.PcItem("pitch"), readline.PcItem("roll")),
	readline.PcItem("maxspeed", readline.PcItem("yaw"), readline.PcItem("pitch"), readline.PcItem("roll")),
	readline.PcItem("gimbal", readline.PcItem("position"), readline.PcItem("velocity"), readline.PcItem("reset")),
	readline.PcItem("cancel"),
	readline.PcItem("calib", readline.PcItem("start"), readline.PcItem("cancel")),
	readline.PcItem("follow",
		readline.PcItem("start"), readline.PcItem("stop"), readline.PcItem("mode"),
		readline.PcItem("pitch"), readline.PcItem("roll"), readline.PcItem("vertical")),
	readline.PcItem("connect"),
	readline.PcItem("disconnect"),
	readline.PcItem("forget"),
	readline.PcItem("profile"),
	readline.PcItem("sim", readline.PcItem("calib"), readline.PcItem("issues")),
	readline.PcItem("quit"),
)

// Stdout returns a writer that keeps the prompt intact.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that keeps the prompt intact.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run reads commands until quit, EOF or ctx ends.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc, t Target) {
	defer s.rl.Close()
	s.t = t
	s.printHelp()

	go func() {
		<-ctx.Done()
		s.rl.Close()
	}()

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && ctx.Err() == nil {
				continue
			}
			cancel()
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if quit := s.exec(ctx, strings.ToLower(fields[0]), fields[1:]); quit {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

func (s *Shell) exec(ctx context.Context, cmd string, args []string) (quit bool) {
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "status", "s":
		s.cmdStatus()
	case "policy":
		s.cmdPolicy(args)
	case "bitrate":
		s.cmdBitrate(args)
	case "pipelines":
		s.cmdPipelines(args)
	case "stab":
		s.cmdStab(args)
	case "maxspeed":
		s.cmdMaxSpeed(args)
	case "gimbal":
		s.cmdGimbal(args)
	case "cancel":
		s.t.Gimbal.CancelControl()
	case "calib":
		s.cmdCalib(args)
	case "follow":
		s.cmdFollow(args)
	case "connect":
		if err := s.t.Connection.Connect(ctx); err != nil {
			fmt.Fprintf(s.out, "connect: %v\n", err)
		}
	case "disconnect":
		s.t.Connection.Disconnect()
	case "forget":
		// Close the link too; Forget alone only ends the session locally.
		s.t.Connection.Disconnect()
		if err := s.t.Ctrl.Forget(); err != nil {
			fmt.Fprintf(s.out, "forget: %v\n", err)
		}
	case "profile":
		s.cmdProfile(args)
	case "sim":
		s.cmdSim(args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
pod-host commands:
  Device:
    status                        - Show connection and component state
    connect | disconnect          - Open or close the session
    forget                        - Drop everything known about the device
    profile [name]                - Show or switch the preset profile

  Network:
    policy <ALL|CELLULAR|WLAN|AUTOMATIC>
    bitrate <kbps>                - Cellular max bitrate, 0 for maximum

  Recorder:
    pipelines [name...]           - Show or set the active pipelines

  Gimbal:
    stab <axis> <on|off>          - Stabilize an axis
    maxspeed <axis> <deg/s>       - Max speed of an axis
    gimbal position <axis>=<deg>...
    gimbal velocity <axis>=<-1..1>...
    gimbal reset                  - Back to the default attitude
    cancel                        - Cancel the gimbal control

  Stereo vision:
    calib <start|cancel>

  Follow-me:
    follow <start|stop>
    follow mode <GEOGRAPHIC|RELATIVE|LEASH>
    follow <pitch|roll|vertical> <percent>

  Simulated device:
    sim calib <success|failure>   - Finish the stereo calibration
    sim issues <mode> <mask>      - Set the missing inputs of a follow mode

  General:
    help | quit`)
}

func (s *Shell) cmdStatus() {
	t := s.t
	fmt.Fprintf(s.out, "device %s: %s, connection %s, profile %s\n",
		t.Ctrl.UID(), t.Ctrl.State(), t.Connection.State(), t.Ctrl.PresetProfile())

	if p, ok := t.Network.RoutingPolicy(); ok {
		fmt.Fprintf(s.out, "  network: policy %s", p)
		if kbps, ok := t.Network.CellularMaxBitrate(); ok {
			fmt.Fprintf(s.out, ", cellular %d kbit/s", kbps)
		}
		if q, ok := t.Network.LinkQuality(); ok {
			fmt.Fprintf(s.out, ", quality %d", q)
		}
		fmt.Fprintln(s.out)
		for _, l := range t.Network.Links() {
			fmt.Fprintf(s.out, "    %-8s %-12s quality %d\n", l.Type, l.Status, l.Quality)
		}
	}

	if active, ok := t.Recorder.ActivePipelines(); ok {
		supported, _ := t.Recorder.SupportedPipelines()
		fmt.Fprintf(s.out, "  recorder: active [%s] of [%s]\n", active, supported)
	}

	if axes, ok := t.Gimbal.SupportedAxes(); ok {
		stab, _ := t.Gimbal.StabilizedAxes()
		speeds, _ := t.Gimbal.MaxSpeeds()
		fmt.Fprintf(s.out, "  gimbal: axes %s, stabilized %s\n", axes, stab)
		for _, a := range axes.Axes() {
			fmt.Fprintf(s.out, "    %-5s max speed %.1f", a, speeds[a])
			if rel, ok := t.Gimbal.Attitude(peripheral.FrameRelative); ok {
				fmt.Fprintf(s.out, ", relative %.1f", rel[a])
			}
			if abs, ok := t.Gimbal.Attitude(peripheral.FrameAbsolute); ok {
				fmt.Fprintf(s.out, ", absolute %.1f", abs[a])
			}
			fmt.Fprintln(s.out)
		}
		if errs := t.Gimbal.Errors(); errs != 0 {
			fmt.Fprintf(s.out, "    errors %s\n", errs)
		}
	}

	if state, ok := t.Stereo.CalibrationState(); ok {
		fmt.Fprintf(s.out, "  stereo vision: calibration %s\n", state)
	}

	fm := t.FollowMe
	if fm.Model().Published() {
		fmt.Fprintf(s.out, "  follow-me: %s, mode %s, behavior %s\n", fm.State(), fm.Mode(), fm.Behavior())
		if issues := fm.AvailabilityIssues(); issues != 0 {
			fmt.Fprintf(s.out, "    blocked by %s\n", issues)
		}
		if issues := fm.QualityIssues(); issues != 0 {
			fmt.Fprintf(s.out, "    degraded by %s\n", issues)
		}
	}
}

func (s *Shell) cmdPolicy(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: policy <ALL|CELLULAR|WLAN|AUTOMATIC>")
		return
	}
	p, ok := peripheral.ParseRoutingPolicy(strings.ToUpper(args[0]))
	if !ok {
		fmt.Fprintf(s.out, "Unknown policy: %s\n", args[0])
		return
	}
	fmt.Fprintln(s.out, s.t.Network.SetRoutingPolicy(p))
}

func (s *Shell) cmdBitrate(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: bitrate <kbps>")
		return
	}
	kbps, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid bitrate: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, s.t.Network.SetCellularMaxBitrate(kbps))
}

func (s *Shell) cmdPipelines(args []string) {
	if len(args) == 0 {
		active, _ := s.t.Recorder.ActivePipelines()
		fmt.Fprintf(s.out, "active: [%s]\n", active)
		return
	}
	var set peripheral.PipelineSet
	for _, name := range args {
		p, ok := peripheral.ParsePipeline(strings.ToUpper(name))
		if !ok {
			fmt.Fprintf(s.out, "Unknown pipeline: %s\n", name)
			return
		}
		set = set.With(p)
	}
	fmt.Fprintln(s.out, s.t.Recorder.SetActivePipelines(set))
}

func parseAxis(s string) (peripheral.Axis, error) {
	a, ok := peripheral.ParseAxis(strings.ToLower(s))
	if !ok {
		return 0, fmt.Errorf("unknown axis %q", s)
	}
	return a, nil
}

func (s *Shell) cmdStab(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "Usage: stab <axis> <on|off>")
		return
	}
	a, err := parseAxis(args[0])
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	fmt.Fprintln(s.out, s.t.Gimbal.SetStabilized(a, args[1] == "on"))
}

func (s *Shell) cmdMaxSpeed(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "Usage: maxspeed <axis> <deg/s>")
		return
	}
	a, err := parseAxis(args[0])
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	v, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid speed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, s.t.Gimbal.SetMaxSpeed(a, v))
}

func (s *Shell) cmdGimbal(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: gimbal <position|velocity> <axis>=<value>... | gimbal reset")
		return
	}

	var mode peripheral.ControlMode
	switch args[0] {
	case "reset":
		if !s.t.Gimbal.ResetAttitude() {
			fmt.Fprintln(s.out, "not sent")
		}
		return
	case "position", "pos":
		mode = peripheral.ControlPosition
	case "velocity", "vel":
		mode = peripheral.ControlVelocity
	default:
		fmt.Fprintf(s.out, "Unknown control mode: %s\n", args[0])
		return
	}

	targets := map[peripheral.Axis]float64{}
	for _, arg := range args[1:] {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			fmt.Fprintf(s.out, "Expected <axis>=<value>, got %s\n", arg)
			return
		}
		a, err := parseAxis(name)
		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid value: %v\n", err)
			return
		}
		targets[a] = v
	}
	if !s.t.Gimbal.Control(mode, targets) {
		fmt.Fprintln(s.out, "gimbal not available")
	}
}

func (s *Shell) cmdCalib(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: calib <start|cancel>")
		return
	}
	var ok bool
	switch args[0] {
	case "start":
		ok = s.t.Stereo.StartCalibration()
	case "cancel":
		ok = s.t.Stereo.CancelCalibration()
	default:
		fmt.Fprintf(s.out, "Unknown calibration command: %s\n", args[0])
		return
	}
	if !ok {
		fmt.Fprintln(s.out, "not sent")
	}
}

func (s *Shell) cmdFollow(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: follow <start|stop|mode|pitch|roll|vertical> [value]")
		return
	}
	fm := s.t.FollowMe

	switch args[0] {
	case "start":
		if err := fm.Activate(); err != nil {
			fmt.Fprintf(s.out, "follow: %v\n", err)
		}
		return
	case "stop":
		if err := fm.Deactivate(); err != nil {
			fmt.Fprintf(s.out, "follow: %v\n", err)
		}
		return
	}

	if len(args) != 2 {
		fmt.Fprintf(s.out, "Usage: follow %s <value>\n", args[0])
		return
	}
	if args[0] == "mode" {
		m, ok := pilotingitf.ParseMode(strings.ToUpper(args[1]))
		if !ok {
			fmt.Fprintf(s.out, "Unknown mode: %s\n", args[1])
			return
		}
		if fm.SetMode(m) {
			fmt.Fprintln(s.out, "restarted")
		}
		return
	}

	v, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid percent: %v\n", err)
		return
	}
	switch args[0] {
	case "pitch":
		fm.SetPitch(v)
	case "roll":
		fm.SetRoll(v)
	case "vertical":
		fm.SetVerticalSpeed(v)
	default:
		fmt.Fprintf(s.out, "Unknown follow command: %s\n", args[0])
	}
}

func (s *Shell) cmdProfile(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, s.t.Ctrl.PresetProfile())
		return
	}
	if err := s.t.Ctrl.SetPresetProfile(args[0]); err != nil {
		fmt.Fprintf(s.out, "profile: %v\n", err)
	}
}

func (s *Shell) cmdSim(args []string) {
	if s.t.Sim == nil {
		fmt.Fprintln(s.out, "not connected to the simulated device")
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: sim calib <success|failure> | sim issues <mode> <mask>")
		return
	}

	var err error
	switch args[0] {
	case "calib":
		result := wire.StereoResultSuccess
		if args[1] != "success" {
			result = wire.StereoResultFailure
		}
		err = s.t.Sim.FinishCalibration(result)
	case "issues":
		if len(args) != 3 {
			fmt.Fprintln(s.out, "Usage: sim issues <mode> <mask>")
			return
		}
		m, ok := pilotingitf.ParseMode(strings.ToUpper(args[1]))
		if !ok {
			fmt.Fprintf(s.out, "Unknown mode: %s\n", args[1])
			return
		}
		mask, perr := strconv.ParseUint(args[2], 0, 32)
		if perr != nil {
			fmt.Fprintf(s.out, "Invalid mask: %v\n", perr)
			return
		}
		err = s.t.Sim.SetFollowMeIssues(uint8(m), uint32(mask))
	default:
		fmt.Fprintf(s.out, "Unknown sim command: %s\n", args[0])
		return
	}
	if err != nil {
		fmt.Fprintf(s.out, "sim: %v\n", err)
	}
}

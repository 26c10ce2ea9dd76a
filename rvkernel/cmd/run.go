package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/rvkernel/apps"
	"github.com/sarchlab/rvkernel/datarecording"
	"github.com/sarchlab/rvkernel/kernel"
	"github.com/sarchlab/rvkernel/kernel/dev"
	"github.com/sarchlab/rvkernel/monitoring"
	"github.com/sarchlab/rvkernel/tracing"
)

type runOptions struct {
	envFile     string
	frames      int
	quantum     uint64
	traceDB     string
	logLevel    string
	monitor     bool
	monitorPort int
	openMonitor bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [program] [args...]",
	Short: "Boot the kernel and run a program until every process exits",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true

		cfg, err := loadConfig(runOpts.envFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}

		err = runOpts.apply(cmd, &cfg)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		r := &runner{
			cfg:         cfg,
			in:          os.Stdin,
			out:         os.Stdout,
			logOut:      os.Stderr,
			monitor:     runOpts.monitor || runOpts.openMonitor,
			openMonitor: runOpts.openMonitor,
		}

		code, err := r.run(context.Background(), args[0], args[1:])
		if err != nil {
			log.Printf("Error: %v", err)
			atexit.Exit(1)
		}

		atexit.Exit(int(code))
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.envFile, "env-file", ".env",
		"file to read RVKERNEL_* settings from")
	f.IntVar(&runOpts.frames, "frames", 0, "number of physical frames")
	f.Uint64Var(&runOpts.quantum, "quantum", 0, "cycles per time slice")
	f.StringVar(&runOpts.traceDB, "trace-db", "",
		"record events into this SQLite database (without extension) "+
			"or a clickhouse:// server")
	f.StringVar(&runOpts.logLevel, "log-level", "",
		"error, info, trace or debug")
	f.BoolVar(&runOpts.monitor, "monitor", false, "serve the web monitor")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"port of the web monitor, random if 0")
	f.BoolVar(&runOpts.openMonitor, "open-monitor", false,
		"serve the web monitor and open it in a browser")

	rootCmd.AddCommand(runCmd)
}

// apply lets flags given on the command line override the config.
func (o runOptions) apply(cmd *cobra.Command, cfg *config) error {
	f := cmd.Flags()

	if f.Changed("frames") {
		cfg.Frames = o.frames
	}

	if f.Changed("quantum") {
		cfg.Quantum = o.quantum
	}

	if f.Changed("trace-db") {
		cfg.TraceDB = o.traceDB
	}

	if f.Changed("monitor-port") {
		cfg.MonitorPort = o.monitorPort
	}

	if f.Changed("log-level") {
		level, err := tracing.ParseLevel(o.logLevel)
		if err != nil {
			return err
		}

		cfg.LogLevel = level
	}

	if cfg.Frames <= 0 || cfg.Quantum == 0 {
		return fmt.Errorf("frames and quantum must be positive")
	}

	return nil
}

// A runner boots one kernel for one top-level program.
type runner struct {
	cfg         config
	in          io.Reader
	out         io.Writer
	logOut      io.Writer
	monitor     bool
	openMonitor bool
}

// run returns the exit code of the program.
func (r *runner) run(
	ctx context.Context,
	name string,
	argv []string,
) (int32, error) {
	var (
		pid      int
		exitCode int32
	)

	b := kernel.MakeBuilder().
		WithNumFrames(r.cfg.Frames).
		WithQuantum(r.cfg.Quantum).
		WithConsole(dev.NewStdioConsole(r.in, r.out)).
		WithPrograms(apps.All()...).
		WithTracer(tracing.NewLogTracer(
			log.New(r.logOut, "", 0), r.cfg.LogLevel)).
		WithTracer(tracing.HookFunc(func(ctx tracing.HookCtx) {
			if ctx.Pos != tracing.HookPosProcessExit {
				return
			}

			if e := ctx.Item.(tracing.ExitEvent); e.PID == pid {
				exitCode = e.Code
			}
		}))

	var (
		recorder datarecording.DataRecorder
		dbTracer *tracing.DBTracer
		execRec  *datarecording.ExecRecorder
	)

	if r.cfg.TraceDB != "" {
		var err error

		recorder, err = openRecorder(r.cfg.TraceDB)
		if err != nil {
			return 0, err
		}

		dbTracer = tracing.NewDBTracer(recorder, name)
		b = b.WithTracer(dbTracer)

		execRec = datarecording.NewExecRecorder(recorder)
		execRec.Start()
		execRec.Set("Program", strings.Join(append([]string{name}, argv...), " "))
	}

	k := b.Build()

	pid, err := k.Spawn(name, argv...)
	if err == nil {
		if r.monitor {
			r.startMonitor(k, name, pid)
		}

		err = k.Run(ctx)
	}

	if dbTracer != nil {
		execRec.Set("Kernel", k.ID())
		execRec.Set("Cycles", strconv.FormatUint(k.Cycles(), 10))
		execRec.End()
		dbTracer.Terminate()

		closeErr := recorder.Close()
		if err == nil {
			err = closeErr
		}
	}

	if err != nil {
		return 0, err
	}

	return exitCode, nil
}

// openRecorder picks the ClickHouse recorder for clickhouse:// addresses and
// a SQLite file otherwise.
func openRecorder(dest string) (datarecording.DataRecorder, error) {
	if datarecording.IsClickHouseDSN(dest) {
		return datarecording.NewClickHouseRecorder(dest)
	}

	return datarecording.New(dest), nil
}

func (r *runner) startMonitor(k *kernel.Kernel, name string, pid int) {
	m := monitoring.NewMonitor().WithPortNumber(r.cfg.MonitorPort)
	m.RegisterKernel(k)

	tracker := monitoring.NewExitTracker(m.CreateProgressBar(name, 1))
	tracker.Watch(pid)
	k.AcceptHook(tracker)

	url := m.StartServer()

	if r.openMonitor {
		err := browser.OpenURL(url)
		if err != nil {
			log.Printf("Cannot open browser: %v", err)
		}
	}
}

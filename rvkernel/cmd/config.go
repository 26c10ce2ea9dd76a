package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sarchlab/rvkernel/tracing"
)

// Environment variables read by the CLI. Values in the process environment
// win over values in the env file.
const (
	envFrames      = "RVKERNEL_FRAMES"
	envQuantum     = "RVKERNEL_QUANTUM"
	envTraceDB     = "RVKERNEL_TRACE_DB"
	envLogLevel    = "RVKERNEL_LOG_LEVEL"
	envMonitorPort = "RVKERNEL_MONITOR_PORT"
)

type config struct {
	Frames      int
	Quantum     uint64
	TraceDB     string
	LogLevel    tracing.Level
	MonitorPort int
}

func defaultConfig() config {
	return config{
		Frames:   1024,
		Quantum:  10000,
		LogLevel: tracing.LevelInfo,
	}
}

// loadConfig reads the env file, if it exists, and the environment.
func loadConfig(envFile string) (config, error) {
	values := map[string]string{}

	if envFile != "" {
		fileValues, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("reading %s: %w", envFile, err)
		}

		for k, v := range fileValues {
			values[k] = v
		}
	}

	for _, k := range []string{
		envFrames, envQuantum, envTraceDB, envLogLevel, envMonitorPort,
	} {
		if v, ok := os.LookupEnv(k); ok {
			values[k] = v
		}
	}

	return parseConfig(values)
}

func parseConfig(values map[string]string) (config, error) {
	cfg := defaultConfig()

	var err error

	if v, ok := values[envFrames]; ok {
		cfg.Frames, err = strconv.Atoi(v)
		if err != nil || cfg.Frames <= 0 {
			return config{}, fmt.Errorf("%s: invalid frame count %q", envFrames, v)
		}
	}

	if v, ok := values[envQuantum]; ok {
		cfg.Quantum, err = strconv.ParseUint(v, 10, 64)
		if err != nil || cfg.Quantum == 0 {
			return config{}, fmt.Errorf("%s: invalid quantum %q", envQuantum, v)
		}
	}

	if v, ok := values[envLogLevel]; ok {
		cfg.LogLevel, err = tracing.ParseLevel(v)
		if err != nil {
			return config{}, fmt.Errorf("%s: %w", envLogLevel, err)
		}
	}

	if v, ok := values[envMonitorPort]; ok {
		cfg.MonitorPort, err = strconv.Atoi(v)
		if err != nil {
			return config{}, fmt.Errorf("%s: invalid port %q", envMonitorPort, v)
		}
	}

	cfg.TraceDB = values[envTraceDB]

	return cfg, nil
}

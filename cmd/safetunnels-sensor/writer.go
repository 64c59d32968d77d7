package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/RickyDenton/SafeTunnels/internal/config"
	"github.com/RickyDenton/SafeTunnels/internal/sim"
)

// sinkOptions override the configured sinks from command-line flags.
type sinkOptions struct {
	stdout string
	file   string
	noDB   bool
}

func addSinkFlags(cmd *cobra.Command, opts *sinkOptions, stdoutDefault string) {
	cmd.Flags().StringVar(&opts.stdout, "stdout", stdoutDefault, "Print samples to STDOUT: none, json, color or auto")
	cmd.Flags().StringVar(&opts.file, "log-file", "", "Append samples to a JSONL file")
	cmd.Flags().BoolVar(&opts.noDB, "no-db", false, "Do not write samples to GreptimeDB")
}

var isTerminal = func(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

// newWriters builds the sample sinks selected by cfg and opts. The returned
// cleanup closes any opened file.
func newWriters(cfg *config.Config, nodeID string, opts sinkOptions) (*sim.MultiWriter, func(), error) {
	cleanup := func() {}
	var ws []sim.SampleWriter

	stdout := cfg.Sinks.Stdout
	if opts.stdout != "" {
		stdout = opts.stdout
	}
	if stdout == "auto" {
		stdout = "json"
		if isTerminal(os.Stdout) {
			stdout = "color"
		}
	}
	switch stdout {
	case "", "none":
	case "json":
		ws = append(ws, sim.NewJSONStdoutWriter())
	case "color":
		ws = append(ws, sim.NewColorStdoutWriter(cfg, nodeID))
	default:
		return nil, nil, fmt.Errorf("unknown stdout sink %q", stdout)
	}

	if cfg.Sinks.Greptime.Endpoint != "" && !opts.noDB {
		gw, err := sim.NewGreptimeDBWriter(cfg.Sinks.Greptime)
		if err != nil {
			return nil, nil, err
		}
		ws = append(ws, gw)
	}

	path := cfg.Sinks.File
	if opts.file != "" {
		path = opts.file
	}
	if path != "" {
		fw, err := sim.NewFileWriter(path)
		if err != nil {
			return nil, nil, err
		}
		ws = append(ws, fw)
		cleanup = func() { fw.Close() }
	}
	return sim.NewMultiWriter(ws...), cleanup, nil
}

// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cmd contains the rawstr command line tool used to inspect handle
// layouts and exercise the arena allocator.
package cmd

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/open-policy-agent/compactstr/v1/logging"
	"github.com/open-policy-agent/compactstr/v1/rawstr"
	"github.com/open-policy-agent/compactstr/v1/rawstr/arena"
)

// EnvPrefix is the prefix of environment variables that override flags,
// e.g. COMPACTSTR_LOG_LEVEL or COMPACTSTR_MAX_SEGMENTS.
const EnvPrefix = "COMPACTSTR"

const (
	formatPretty = "pretty"
	formatJSON   = "json"
)

type rootParams struct {
	logLevel    string
	logFormat   string
	format      string
	maxSegments int
	bufferCache int
}

// Command returns the root command. brand is used as the command name.
func Command(brand string) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           brand,
		Short:         "Inspect and exercise compact string handles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(v, cmd.Flags())
		},
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "info", "set log level: debug, info, warn, error")
	flags.String("log-format", "text", "set log format: text, json")
	flags.String("format", formatPretty, "set output format: pretty, json")
	flags.Int("max-segments", arena.MaxSegments, "maximum number of arena segments")
	flags.Int("buffer-cache", 0, "number of freed buffers the arena keeps for reuse")

	root.AddCommand(
		inspectCommand(v),
		statsCommand(v),
	)

	return root
}

// bindFlags makes every flag readable through v, so that values may come
// from the command line or the environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err == nil {
			err = v.BindPFlag(f.Name, f)
		}
	})
	return err
}

func loadRootParams(v *viper.Viper) (rootParams, error) {
	p := rootParams{
		logLevel:    v.GetString("log-level"),
		logFormat:   v.GetString("log-format"),
		format:      v.GetString("format"),
		maxSegments: v.GetInt("max-segments"),
		bufferCache: v.GetInt("buffer-cache"),
	}

	switch p.format {
	case formatPretty, formatJSON:
	default:
		return p, fmt.Errorf("invalid output format %q", p.format)
	}

	if p.maxSegments <= 0 || p.maxSegments > arena.MaxSegments {
		return p, fmt.Errorf("max-segments must be in (0, %d]", arena.MaxSegments)
	}

	return p, nil
}

func newLogger(cmd *cobra.Command, p rootParams) (logging.Logger, error) {
	level, ok := logging.ParseLevel(p.logLevel)
	if !ok {
		return nil, fmt.Errorf("invalid log level %q", p.logLevel)
	}

	logger := logging.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(level)

	switch p.logFormat {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", p.logFormat)
	}

	return logger, nil
}

// env bundles what every subcommand needs: its parsed root parameters, a
// logger and a heap backed by a freshly created arena.
type env struct {
	params rootParams
	logger logging.Logger
	arena  *arena.Arena
	heap   *rawstr.Heap
	reg    *prometheus.Registry
}

func newEnv(cmd *cobra.Command, v *viper.Viper) (*env, error) {
	p, err := loadRootParams(v)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd, p)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	a := arena.NewWithOpts(
		arena.WithLogger(logger),
		arena.WithMaxSegments(p.maxSegments),
		arena.WithBufferCache(p.bufferCache),
		arena.WithRegisterer(reg),
	)

	return &env{
		params: p,
		logger: logger,
		arena:  a,
		heap:   rawstr.NewHeap(rawstr.WithAllocator(a), rawstr.WithLogger(logger)),
		reg:    reg,
	}, nil
}

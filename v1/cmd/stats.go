// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/open-policy-agent/compactstr/v1/rawstr"
	"github.com/open-policy-agent/compactstr/v1/rawstr/arena"
	"github.com/open-policy-agent/compactstr/v1/util"
)

type statsParams struct {
	count   int
	length  int
	workers int
}

type statsResult struct {
	Count   int                `json:"count"`
	Length  int                `json:"length"`
	Workers int                `json:"workers"`
	Peak    arena.Stats        `json:"peak"`
	Final   arena.Stats        `json:"final"`
	Metrics map[string]float64 `json:"metrics"`
}

func statsCommand(v *viper.Viper) *cobra.Command {
	c := &cobra.Command{
		Use:   "stats",
		Short: "Build and release handles and report arena statistics",
		Long: `Build and release handles and report arena statistics.

Each worker builds its share of --count handles of --length bytes, checks
their content, and releases them. Arena statistics are reported at the peak
(all handles live) and after every handle was released.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd, v)
			if err != nil {
				return err
			}

			p := statsParams{
				count:   v.GetInt("count"),
				length:  v.GetInt("length"),
				workers: v.GetInt("workers"),
			}
			if p.count < 0 || p.length < 0 || p.workers <= 0 {
				return fmt.Errorf("count and length must not be negative and workers must be positive")
			}

			res, err := runStats(cmd.Context(), e, p)
			if err != nil {
				return err
			}

			if res.Final.Live != 0 {
				e.logger.WithFields(map[string]any{
					"buffers": res.Final.Live,
					"bytes":   res.Final.LiveBytes,
				}).Warn("arena: buffers leaked")
			}

			return writeStats(cmd.OutOrStdout(), e.params.format, res)
		},
	}

	c.Flags().Int("count", 10000, "number of handles to build")
	c.Flags().Int("length", 32, "length in bytes of every handle")
	c.Flags().Int("workers", 4, "number of concurrent workers")

	return c
}

func runStats(ctx context.Context, e *env, p statsParams) (*statsResult, error) {
	content := bytes.Repeat([]byte("0123456789abcdef"), p.length/16+1)[:p.length]

	// Workers park here once their handles are built so the peak can be
	// sampled with every handle live.
	built := make(chan struct{}, p.workers)
	release := make(chan struct{})

	g, ctx := errgroup.WithContext(ctx)
	for w := range p.workers {
		n := p.count / p.workers
		if w < p.count%p.workers {
			n++
		}

		g.Go(func() error {
			handles := make([]rawstr.Raw, 0, n)
			defer func() {
				for i := range handles {
					e.heap.Release(&handles[i])
				}
			}()

			for range n {
				if err := ctx.Err(); err != nil {
					return err
				}
				r, err := buildHandle(e.heap, content)
				if err != nil {
					return err
				}
				handles = append(handles, r)
				if !bytes.Equal(e.heap.Bytes(&handles[len(handles)-1]), content) {
					return fmt.Errorf("worker %d: handle content mismatch", w)
				}
			}

			built <- struct{}{}
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	for range p.workers {
		select {
		case <-built:
		case <-ctx.Done():
		}
	}
	peak := e.arena.Stats()
	close(release)

	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics, err := gatherMetrics(e)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("built and released %d handles across %d workers", p.count, p.workers)

	return &statsResult{
		Count:   p.count,
		Length:  p.length,
		Workers: p.workers,
		Peak:    peak,
		Final:   e.arena.Stats(),
		Metrics: metrics,
	}, nil
}

// buildHandle turns an allocation failure, which the heap reports by
// panicking, into an error.
func buildHandle(h *rawstr.Heap, content []byte) (r rawstr.Raw, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("allocation failed: %v", v)
		}
	}()
	return h.FromBytes(content), nil
}

func gatherMetrics(e *env) (map[string]float64, error) {
	families, err := e.reg.Gather()
	if err != nil {
		return nil, err
	}

	metrics := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			metrics[mf.GetName()] = metricValue(mf.GetType(), m)
		}
	}
	return metrics, nil
}

func metricValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	}
	return m.GetUntyped().GetValue()
}

func writeStats(w io.Writer, format string, res *statsResult) error {
	if format == formatJSON {
		bs, err := util.MarshalJSONIndent(res)
		if err != nil {
			return err
		}
		_, err = w.Write(bs)
		return err
	}

	fmt.Fprintf(w, "handles: %d of %d bytes, workers: %d\n", res.Count, res.Length, res.Workers)

	table := tablewriter.NewWriter(w)
	table.Header("", "Live", "Live Bytes", "Allocs", "Frees", "Reused", "Segments")
	for _, row := range []struct {
		name string
		s    arena.Stats
	}{{"peak", res.Peak}, {"final", res.Final}} {
		err := table.Append(row.name,
			strconv.FormatInt(row.s.Live, 10),
			strconv.FormatInt(row.s.LiveBytes, 10),
			strconv.FormatUint(row.s.Allocs, 10),
			strconv.FormatUint(row.s.Frees, 10),
			strconv.FormatUint(row.s.Reused, 10),
			strconv.FormatInt(int64(row.s.Segments), 10),
		)
		if err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	metrics := tablewriter.NewWriter(w)
	metrics.Header("Metric", "Value")
	for _, name := range names {
		if err := metrics.Append(name, strconv.FormatFloat(res.Metrics[name], 'f', -1, 64)); err != nil {
			return err
		}
	}
	return metrics.Render()
}

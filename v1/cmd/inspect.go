// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/open-policy-agent/compactstr/v1/rawstr"
	"github.com/open-policy-agent/compactstr/v1/util"
)

// inspectResult describes the handle built for one input string.
type inspectResult struct {
	Text         string `json:"text"`
	Mode         string `json:"mode"`
	Len          int    `json:"len"`
	Discriminant string `json:"discriminant"`
	Ref          uint   `json:"ref,omitempty"`
	Image        string `json:"image"`
}

func inspectCommand(v *viper.Viper) *cobra.Command {
	var file string

	c := &cobra.Command{
		Use:   "inspect [text...]",
		Short: "Show the handle layout of strings",
		Long: `Show the handle layout of strings.

Each argument is stored in a handle and the mode (inline or heap), length,
decoded discriminant and raw handle bytes are printed. With --file, a JSON or
YAML list of strings is read as well.`,
		PreRunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 && file == "" {
				return errors.New("specify at least one string or --file")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, v)
			if err != nil {
				return err
			}

			inputs := args
			if file != "" {
				more, err := readInputs(file)
				if err != nil {
					return err
				}
				inputs = append(inputs, more...)
			}

			results, err := inspect(e.heap, inputs)
			if err != nil {
				return err
			}
			e.logger.Debug("inspected %d strings, %d heap buffers still live", len(results), e.arena.Live())

			return writeInspect(cmd.OutOrStdout(), e.params.format, results)
		},
	}

	c.Flags().StringVarP(&file, "file", "f", "", "read a JSON or YAML list of strings from file")

	return c
}

func readInputs(path string) ([]string, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var inputs []string
	if err := util.Unmarshal(bs, &inputs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inputs, nil
}

func inspect(h *rawstr.Heap, inputs []string) ([]inspectResult, error) {
	results := make([]inspectResult, 0, len(inputs))

	for i, s := range inputs {
		r, err := h.FromUTF8([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		layout := r.Classify()
		image := r.Image()

		results = append(results, inspectResult{
			Text:         h.String(&r),
			Mode:         layout.Mode.String(),
			Len:          layout.Len,
			Discriminant: fmt.Sprintf("%#x", r.Discriminant()),
			Ref:          layout.Ref,
			Image:        hex.EncodeToString(image[:]),
		})

		h.Release(&r)
	}

	return results, nil
}

func writeInspect(w io.Writer, format string, results []inspectResult) error {
	if format == formatJSON {
		bs, err := util.MarshalJSONIndent(results)
		if err != nil {
			return err
		}
		_, err = w.Write(bs)
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Text", "Mode", "Len", "Discriminant", "Ref", "Image")
	for _, r := range results {
		ref := "-"
		if r.Ref != 0 {
			ref = strconv.FormatUint(uint64(r.Ref), 10)
		}
		if err := table.Append(strconv.Quote(r.Text), r.Mode, strconv.Itoa(r.Len), r.Discriminant, ref, r.Image); err != nil {
			return err
		}
	}
	return table.Render()
}

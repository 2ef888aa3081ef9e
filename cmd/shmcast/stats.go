/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/diabloget/sync-process-comms/internal/broadcast"
	"github.com/diabloget/sync-process-comms/internal/shm"
)

func newStatsCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the counters and registries of a live region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := shm.Attach(a.cfg.Region.Dir, a.cfg.Region.Name)
			if err != nil {
				return err
			}
			defer r.Close()
			return writeStats(cmd.OutOrStdout(), output, broadcast.ReadStats(r))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func writeStats(w io.Writer, format string, st broadcast.Stats) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(st)
	case "text", "":
		return writeStatsText(w, st)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeStatsText(w io.Writer, st broadcast.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Region:\t%s (%s)\n", st.Name, st.State)
	fmt.Fprintf(tw, "Instance:\t%s\n", st.Instance)
	fmt.Fprintf(tw, "Created:\t%s\n", st.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Slots:\t%d free / %d (%d in flight)\n", st.FreeSlots, st.Capacity, st.InFlight)
	fmt.Fprintf(tw, "Write cursor:\t%d\n", st.WriteCursor)
	fmt.Fprintf(tw, "Source:\t%d bytes\n", st.SourceLen)
	fmt.Fprintf(tw, "Bytes transferred:\t%d\n", st.TotalBytes)
	fmt.Fprintf(tw, "Emitters:\t%d active / %d total\n", st.ActiveProducers, st.TotalProducers)
	fmt.Fprintf(tw, "Receivers:\t%d active / %d total\n", st.ActiveConsumers, st.TotalConsumers)
	fmt.Fprintf(tw, "Shutdown requested:\t%t\n", st.ShutdownRequested)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(st.Producers)+len(st.Receivers) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tROW\tOWNER\tMODE\tJOINED\tCURSOR\tBYTES\tBACKLOG")
	for _, m := range st.Producers {
		fmt.Fprintf(tw, "emitter\t%d\t%d\t%s\t%s\t-\t%d\t-\n",
			m.Row, m.Owner, m.Mode, m.JoinedAt.Local().Format(time.TimeOnly), m.Bytes)
	}
	for _, m := range st.Receivers {
		cursor := "-"
		if m.Cursor != nil {
			cursor = fmt.Sprint(*m.Cursor)
		}
		fmt.Fprintf(tw, "receiver\t%d\t%d\t%s\t%s\t%s\t%d\t%d\n",
			m.Row, m.Owner, m.Mode, m.JoinedAt.Local().Format(time.TimeOnly), cursor, m.Bytes, m.Backlog)
	}
	return tw.Flush()
}

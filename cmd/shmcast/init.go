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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/diabloget/sync-process-comms/internal/shm"
)

func newInitCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init <source-file|->",
		Short: "Create the region and load the source document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0])
			if err != nil {
				return err
			}

			r, err := shm.Create(shm.Options{
				Name:         a.cfg.Region.Name,
				Dir:          a.cfg.Region.Dir,
				Capacity:     a.cfg.Region.Capacity,
				MaxReceivers: a.cfg.Region.MaxReceivers,
				MaxProducers: a.cfg.Region.MaxProducers,
				Source:       source,
				Replace:      force,
			})
			if err != nil {
				return err
			}
			defer r.Close()

			a.logger.Info("Region created",
				"name", r.Name(),
				"path", r.Path(),
				"instance", r.Header().Instance().String(),
				"capacity", r.Capacity(),
				"sourceLen", len(source),
				"size", r.Size())
			fmt.Fprintf(cmd.OutOrStdout(), "Region %s ready at %s (%d slots, %d source bytes)\n",
				r.Name(), r.Path(), r.Capacity(), len(source))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing region of the same name")
	return cmd
}

func readSource(path string) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(io.LimitReader(os.Stdin, shm.MaxSourceSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read source from stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	return b, nil
}

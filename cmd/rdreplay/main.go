// Copyright (C) 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// rdreplay inspects and replays capture log files against the in-memory
// driver.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/deM-on/renderdoc/config"
	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver/fake"
	"github.com/deM-on/renderdoc/frame"
	"github.com/deM-on/renderdoc/serialise"
	"github.com/deM-on/renderdoc/vulkan"
)

var (
	verbose    bool
	configPath string
)

func newContext() context.Context {
	handler := log.Writer(os.Stderr)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = log.ColorWriter(os.Stderr)
	}
	ctx := log.PutHandler(context.Background(), handler)
	if !verbose {
		ctx = log.PutFilter(ctx, log.Info)
	}
	if configPath != "" {
		opts, err := config.Load(configPath)
		if err != nil {
			log.W(ctx, "Falling back to default options: %v", err)
		}
		config.Set(opts)
	}
	return ctx
}

func openReplay(ctx context.Context, path string) (*vulkan.Wrapped, error) {
	params, _, ser, err := serialise.Open(path)
	if err != nil {
		return nil, err
	}
	w := vulkan.NewReplay(fake.New(), fake.Queue, params, ser)
	if err := w.ReadLogInitialisation(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <log>",
		Short: "Print the header of a capture log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, thumbnail, _, err := serialise.Open(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("App:        %s (version %d)\n", params.AppName, params.AppVersion)
			fmt.Printf("Engine:     %s (version %d)\n", params.EngineName, params.EngineVersion)
			fmt.Printf("API:        %d\n", params.APIVersion)
			fmt.Printf("Layers:     %s\n", strings.Join(params.Layers, ", "))
			fmt.Printf("Extensions: %s\n", strings.Join(params.Extensions, ", "))
			fmt.Printf("Thumbnail:  %d bytes\n", len(thumbnail))
			return nil
		},
	}
}

func printDrawcalls(draws []frame.Drawcall, depth int) {
	for _, d := range draws {
		fmt.Printf("%s[%4d] %s\n", strings.Repeat("  ", depth), d.EventID, d.Name)
		printDrawcalls(d.Children, depth+1)
	}
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <log>",
		Short: "Print the event and drawcall tree of a capture log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := newContext()
			w, err := openReplay(ctx, args[0])
			if err != nil {
				return err
			}
			for _, rec := range w.FrameRecords() {
				fmt.Printf("Frame %d (%d events)\n", rec.FrameNumber, len(w.Events()))
				printDrawcalls(rec.DrawcallList, 1)
			}
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	var (
		eventID uint32
		mode    string
	)
	cmd := &cobra.Command{
		Use:   "replay <log>",
		Short: "Replay a capture log against the in-memory driver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := newContext()
			w, err := openReplay(ctx, args[0])
			if err != nil {
				return err
			}

			end := eventID
			if end == 0 {
				end = ^uint32(0)
			}

			switch mode {
			case "full":
				err = w.ReplayLog(ctx, 0, 0, end, vulkan.ReplayFull)
			case "withoutdraw":
				err = w.ReplayLog(ctx, 0, 0, end, vulkan.ReplayWithoutDraw)
			case "onlydraw":
				if err = w.ReplayLog(ctx, 0, 0, end, vulkan.ReplayWithoutDraw); err != nil {
					return err
				}
				err = w.ReplayLog(ctx, 0, 0, end, vulkan.ReplayOnlyDraw)
			default:
				return fmt.Errorf("unknown mode %q", mode)
			}
			if err != nil {
				return err
			}

			d := w.Driver().(*fake.Driver)
			for i, submit := range d.Submits() {
				fmt.Printf("Submit %d:\n", i)
				for _, cb := range submit {
					for _, c := range d.Commands(cb) {
						fmt.Printf("  %s\n", c)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().Uint32Var(&eventID, "event", 0, "last event to replay (0 for the whole frame)")
	cmd.Flags().StringVar(&mode, "mode", "full", "replay mode: full, withoutdraw or onlydraw")
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:           "rdreplay",
		Short:         "Capture log inspector and replayer",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug output")
	root.PersistentFlags().StringVar(&configPath, "config", "", "capture options YAML file")
	root.AddCommand(infoCmd(), eventsCmd(), replayCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/philipparndt/stl2step/pkg/openscad"
	"github.com/philipparndt/stl2step/pkg/watcher"
)

const watchDebounce = 300 * time.Millisecond

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file ...>",
		Short: "Convert files and convert them again whenever they change",
		Long: `Convert every file once, then watch it (and for OpenSCAD sources every file
it uses or includes) and convert again after each change until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conv := a.converter()
			out := cmd.OutOrStdout()

			fw, err := watcher.NewFileWatcher(watchDebounce, a.logger)
			if err != nil {
				return err
			}
			defer fw.Close()

			// mu serializes conversions and changes of the watched set
			var mu sync.Mutex
			watched := make(map[string][]string, len(args))

			run := func(input string) {
				output, err := conv.Convert(ctx, input)
				if err != nil {
					a.logger.Error("conversion failed", "input", input, "error", err)
					return
				}
				fmt.Fprintf(out, "%s -> %s\n", input, output)
			}

			var onChange func(input string)
			register := func() error {
				if err := fw.RemoveAll(); err != nil {
					return err
				}
				for _, input := range args {
					deps, err := conv.Dependencies(input)
					if err != nil {
						return err
					}
					if err := fw.Watch(deps, func(string) { onChange(input) }); err != nil {
						return err
					}
					watched[input] = deps
				}
				return nil
			}
			onChange = func(input string) {
				mu.Lock()
				defer mu.Unlock()
				run(input)
				if !openscad.IsSource(input) {
					return
				}
				// An edited source may include other files now
				deps, err := conv.Dependencies(input)
				if err != nil || slices.Equal(deps, watched[input]) {
					return
				}
				a.logger.Info("dependencies changed, reloading watched files", "input", input, "files", len(deps))
				if err := register(); err != nil {
					a.logger.Error("reload watched files", "error", err)
				}
			}

			mu.Lock()
			err = register()
			if err == nil {
				for _, input := range args {
					run(input)
				}
			}
			mu.Unlock()
			if err != nil {
				return err
			}

			a.logger.Info("watching for changes", "files", len(args))
			if err := fw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

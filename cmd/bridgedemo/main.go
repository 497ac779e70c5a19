// Command bridgedemo exercises a RunModule bridge end-to-end against the
// in-memory demohost.Store, printing what the module side did once the
// bridge drains and joins.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/covebridge/fiberbridge"
	"github.com/covebridge/fiberbridge/bridge"
	"github.com/covebridge/fiberbridge/config"
	"github.com/covebridge/fiberbridge/internal/demohost"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bridgedemo",
	Short: "Run a sample module against an in-memory host over the fiber bridge",
	RunE:  runDemo,
}

var validateCmd = &cobra.Command{
	Use:   "validate-config [path]",
	Short: "Load and validate a ModuleConfig YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ok: buffer=%d fibers=%d max_batch=%d runtime=%s\n",
			cfg.Buffer, cfg.Fibers, cfg.MaxBatch, cfg.Runtime.Kind)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a ModuleConfig YAML file (optional, defaults applied otherwise)")
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	host := demohost.New()

	ops, err := fiberbridge.RunModule(context.Background(), host, cfg,
		func(ctx context.Context, d *bridge.Dispatcher[demohost.Store]) (int, error) {
			keys := []string{"alpha", "beta", "gamma"}
			for _, k := range keys {
				if _, err := bridge.Dispatch(ctx, d, func(h *demohost.Store) int {
					return h.Set(k, k+"-value")
				}); err != nil {
					return 0, err
				}
			}

			for _, k := range keys {
				v, err := bridge.Dispatch(ctx, d, func(h *demohost.Store) string {
					val, _ := h.Get(k)
					return val
				})
				if err != nil {
					return 0, err
				}
				fmt.Printf("%s = %s\n", k, v)
			}

			return bridge.Dispatch(ctx, d, func(h *demohost.Store) int { return h.Ops() })
		},
	)
	if err != nil {
		return err
	}

	fmt.Printf("module completed, %d mutating ops applied to the host\n", ops)
	return nil
}

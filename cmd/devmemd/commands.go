package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"devmem/internal/config"
	"devmem/internal/driver"
	"devmem/internal/httpapi"
	"devmem/internal/manager"
)

const mib = 1 << 20

// options mirrors config.Config with flag-resolved defaults applied.
type options struct {
	cfgPath string
	cfg     config.Config
}

func (o *options) resolve() error {
	if o.cfgPath != "" {
		loaded, err := config.Load(o.cfgPath)
		if err != nil {
			return err
		}
		// Values set in the file override flag defaults.
		if loaded.Addr != "" {
			o.cfg.Addr = loaded.Addr
		}
		if loaded.Mode != "" {
			o.cfg.Mode = loaded.Mode
		}
		if loaded.Debug {
			o.cfg.Debug = true
		}
		if len(loaded.DeviceMB) > 0 {
			o.cfg.DeviceMB = loaded.DeviceMB
		}
		if loaded.BinBase != 0 {
			o.cfg.BinBase = loaded.BinBase
		}
		if loaded.MinBin != 0 {
			o.cfg.MinBin = loaded.MinBin
		}
		if loaded.MaxBin != 0 {
			o.cfg.MaxBin = loaded.MaxBin
		}
		if loaded.MaxCachedMB != 0 {
			o.cfg.MaxCachedMB = loaded.MaxCachedMB
		}
		if loaded.SkipCleanup {
			o.cfg.SkipCleanup = true
		}
	}
	if o.cfg.Addr == "" {
		o.cfg.Addr = ":8080"
	}
	if len(o.cfg.DeviceMB) == 0 {
		o.cfg.DeviceMB = []int{8192}
	}
	return nil
}

// build wires a simulated driver and an armed manager from the options.
func (o *options) build(log zerolog.Logger) (*manager.Manager, *driver.SimDriver, error) {
	caps := make([]uint64, len(o.cfg.DeviceMB))
	devices := make([]int, len(o.cfg.DeviceMB))
	for i, mb := range o.cfg.DeviceMB {
		caps[i] = uint64(mb) * mib
		devices[i] = i
	}
	drv := driver.NewSimDriver(caps...)
	m := manager.New(manager.Config{
		Driver:         drv,
		Logger:         &log,
		BinBase:        o.cfg.BinBase,
		MinBin:         o.cfg.MinBin,
		MaxBin:         o.cfg.MaxBin,
		MaxCachedBytes: uint64(o.cfg.MaxCachedMB) * mib,
		SkipCleanup:    o.cfg.SkipCleanup,
	})
	if err := m.Init(devices, manager.ParseMode(o.cfg.Mode), o.cfg.Debug); err != nil {
		return nil, nil, err
	}
	return m, drv, nil
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "devmemd",
		Short:         "Device-memory allocation manager over a simulated driver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.cfgPath, "config", "", "Path to a YAML/JSON/TOML config file")
	root.PersistentFlags().StringVar(&opts.cfg.Addr, "addr", "", "HTTP listen address (default :8080)")
	root.PersistentFlags().StringVar(&opts.cfg.Mode, "mode", "caching", "Allocator mode: direct|caching")
	root.PersistentFlags().BoolVar(&opts.cfg.Debug, "debug", false, "Verbose allocator diagnostics")
	root.PersistentFlags().IntSliceVar(&opts.cfg.DeviceMB, "device-mb", nil, "Simulated device capacities in MiB (default 8192)")

	root.AddCommand(newServeCmd(opts), newInfoCmd(opts), newSoakCmd(opts))
	return root
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the diagnostic HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.resolve(); err != nil {
				return err
			}
			log := newLogger(opts.cfg.Debug)
			m, _, err := opts.build(log)
			if err != nil {
				return err
			}
			defer m.Close()

			httpapi.SetLogger(log)
			srv := &http.Server{Addr: opts.cfg.Addr, Handler: httpapi.NewMux(m)}
			errCh := make(chan error, 1)
			go func() {
				log.Info().
					Str("addr", opts.cfg.Addr).
					Str("backend", m.PoolName()).
					Int("devices", len(opts.cfg.DeviceMB)).
					Msg("devmemd listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			// Graceful shutdown (Ctrl+C / SIGTERM)
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-stop:
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("graceful shutdown failed")
			}
			return nil
		},
	}
}

func newInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the device table once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.resolve(); err != nil {
				return err
			}
			m, _, err := opts.build(newLogger(opts.cfg.Debug))
			if err != nil {
				return err
			}
			defer m.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "backend: %s\n", m.PoolName())
			for _, d := range m.Devices() {
				fmt.Fprintf(cmd.OutOrStdout(), "device %d: free %d MiB / total %d MiB (flushes: %d)\n",
					d.Device, d.FreeBytes/mib, d.TotalBytes/mib, d.FlushCount)
			}
			return nil
		},
	}
}

func newSoakCmd(opts *options) *cobra.Command {
	var ops int
	var seed int64
	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Exercise random alloc/free traffic and report accounting",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.resolve(); err != nil {
				return err
			}
			m, drv, err := opts.build(newLogger(opts.cfg.Debug))
			if err != nil {
				return err
			}
			defer m.Close()

			rng := rand.New(rand.NewSource(seed))
			var held []driver.DevicePtr
			var success, failed int
			for i := 0; i < ops; i++ {
				if rng.Intn(3) < 2 || len(held) == 0 {
					_ = drv.SetDevice(rng.Intn(len(opts.cfg.DeviceMB)))
					size := uint64(rng.Intn(8*mib) + 1)
					if ptr, ok := m.TryAllocate(size, driver.DefaultQueue); ok {
						held = append(held, ptr)
						success++
					} else {
						failed++
					}
				} else {
					idx := rng.Intn(len(held))
					m.Deallocate(held[idx], driver.DefaultQueue)
					held = append(held[:idx], held[idx+1:]...)
				}
			}
			for _, ptr := range held {
				m.Deallocate(ptr, driver.DefaultQueue)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ops=%d allocated=%d failed=%d\n", ops, success, failed)
			for _, d := range m.Devices() {
				fmt.Fprintf(cmd.OutOrStdout(), "device %d: free %d MiB / total %d MiB (flushes: %d)\n",
					d.Device, d.FreeBytes/mib, d.TotalBytes/mib, d.FlushCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ops, "ops", 10000, "Number of random operations")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed")
	return cmd
}

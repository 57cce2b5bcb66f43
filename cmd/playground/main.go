package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	playgroundcli "github.com/yubzen/playground/internal/cli"
	"github.com/yubzen/playground/internal/config"
	"github.com/yubzen/playground/internal/logging"
	"github.com/yubzen/playground/internal/playground"
	"github.com/yubzen/playground/internal/project"
	"github.com/yubzen/playground/internal/state"
	"github.com/yubzen/playground/internal/tui"
)

type runtimeDeps struct {
	ctx      context.Context
	cancel   context.CancelFunc
	db       *state.DB
	logFile  *os.File
	resolver project.Resolver
	watcher  *project.FileResolver
}

func (r *runtimeDeps) Close() {
	if r == nil {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.watcher != nil {
		select {
		case <-r.watcher.Done:
		case <-time.After(3 * time.Second):
			fmt.Fprintln(os.Stderr, "timed out waiting for project watcher shutdown")
		}
	}
	if r.db != nil {
		_ = r.db.Close()
	}
	if r.logFile != nil {
		_ = r.logFile.Close()
	}
}

func restoreTerminalState() {
	fmt.Fprint(os.Stderr, "\x1b[?25h\x1b[0m")
}

func setupLogging(cfg *config.Config) (*os.File, error) {
	if cfg.Log.File == "" {
		return nil, nil
	}
	f, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:      logging.ParseLevel(cfg.Log.Level),
		Output:     f,
		TimeFormat: time.RFC3339,
	})
	return f, nil
}

func bootstrapRuntime(cfg *config.Config) (*runtimeDeps, error) {
	rt := &runtimeDeps{}
	rt.ctx, rt.cancel = context.WithCancel(context.Background())

	logFile, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	}
	rt.logFile = logFile

	db, err := state.Connect(cfg.State.DBPath)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.db = db

	rt.resolver = playgroundcli.NewResolver(cfg)
	if fr, ok := rt.resolver.(*project.FileResolver); ok {
		if err := fr.Start(rt.ctx); err != nil {
			rt.Close()
			return nil, err
		}
		rt.watcher = fr
	}
	logging.Info().Str("project", rt.resolver.Current().String()).Str("backend", cfg.Backend.BaseURL).Msg("playground starting")
	return rt, nil
}

func main() {
	var panels int
	var stream bool

	rootCmd := &cobra.Command{
		Use:   "playground",
		Short: "Compare LLM prompts side by side in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			rt, err := bootstrapRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			opts := tui.Options{
				Backend:  playgroundcli.NewBackend(cfg),
				Store:    rt.db,
				Resolver: rt.resolver,
				Panel: playground.PanelOptions{
					Temperature: cfg.Playground.Temperature,
					Streaming:   cfg.Playground.Streaming || stream,
				},
				Panels: cfg.Playground.Panels,
			}
			if cmd.Flags().Changed("panels") {
				opts.Panels = panels
			}

			app := tui.NewAppModel(opts)
			defer app.Close()
			p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(rt.ctx))
			_, err = p.Run()
			return err
		},
	}
	rootCmd.Flags().IntVarP(&panels, "panels", "n", 1, "Number of panels to open")
	rootCmd.Flags().BoolVar(&stream, "stream", false, "Start panels with streaming on")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Opens TUI config form",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Load()
			return config.RunConfigForm(cfg, config.GetConfigPath())
		},
	}

	rootCmd.AddCommand(
		configCmd,
		playgroundcli.NewRunCmd(),
		playgroundcli.NewConnectionsCmd(),
		playgroundcli.NewAuthCmd(),
		playgroundcli.NewCatalogCmd(),
		playgroundcli.NewHistoryCmd(),
		playgroundcli.NewStubCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		restoreTerminalState()
		os.Exit(1)
	}
	restoreTerminalState()
}

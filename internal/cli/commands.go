package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yubzen/playground/internal/config"
	"github.com/yubzen/playground/internal/logging"
	"github.com/yubzen/playground/internal/playground"
	"github.com/yubzen/playground/internal/project"
	"github.com/yubzen/playground/internal/providers"
	"github.com/yubzen/playground/internal/state"
	"github.com/yubzen/playground/internal/stubserver"
)

// NewBackend builds the backend client from cfg and the stored session
// credential. A missing credential is not an error; the backend decides.
func NewBackend(cfg *config.Config) *providers.Client {
	session, err := providers.LoadCredential(providers.SessionCredential)
	if err != nil && !errors.Is(err, providers.ErrCredentialNotFound) {
		logging.Warn().Err(err).Msg("session credential unavailable")
	}
	return providers.NewClient(providers.Options{
		BaseURL:         cfg.Backend.BaseURL,
		ConnectionsPath: cfg.Backend.ConnectionsPath,
		CreatePath:      cfg.Backend.CreatePath,
		ChatPath:        cfg.Backend.ChatPath,
		SessionCookie:   cfg.Backend.SessionCookie,
		Session:         session,
		Timeout:         cfg.Timeout(),
		Retries:         cfg.Backend.Retries,
	})
}

// NewResolver picks the project source: a watched file when configured,
// otherwise the fixed id, which may be empty.
func NewResolver(cfg *config.Config) project.Resolver {
	if path := strings.TrimSpace(cfg.Project.File); path != "" {
		return project.NewFileResolver(path)
	}
	if id := strings.TrimSpace(cfg.Project.ID); id != "" {
		return project.FromValue(id)
	}
	return project.NewStatic(project.Missing())
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func NewAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the backend session credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd.OutOrStdout())
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a session credential is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd.OutOrStdout())
		},
	}

	var setValue string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store the backend session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value := strings.TrimSpace(setValue)
			if value == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Enter session token: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read session token: %w", err)
				}
				value = strings.TrimSpace(line)
			}
			if value == "" {
				return errors.New("session token cannot be empty")
			}
			if err := providers.StoreCredential(providers.SessionCredential, value); err != nil {
				return fmt.Errorf("store session token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stored session token.")
			return nil
		},
	}
	setCmd.Flags().StringVar(&setValue, "token", "", "Session token value")

	removeCmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := providers.DeleteCredential(providers.SessionCredential); err != nil {
				return fmt.Errorf("remove session token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed session token.")
			return nil
		},
	}

	authCmd.AddCommand(statusCmd, setCmd, removeCmd)
	return authCmd
}

func runAuthStatus(out io.Writer) error {
	_, err := providers.LoadCredential(providers.SessionCredential)
	switch {
	case err == nil:
		fmt.Fprintln(out, "Session token: stored")
	case errors.Is(err, providers.ErrCredentialNotFound):
		fmt.Fprintln(out, "Session token: not set. Use `playground auth set` first.")
	default:
		return fmt.Errorf("read session token: %w", err)
	}
	return nil
}

func NewConnectionsCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "List the LLM connections configured for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			id := firstNonEmpty(projectID, cfg.Project.ID)
			if id == "" && cfg.Project.File != "" {
				ctx, cancel := context.WithCancel(cmd.Context())
				r := project.NewFileResolver(cfg.Project.File)
				if err := r.Start(ctx); err == nil {
					id, _ = r.Current().Value()
				}
				cancel()
			}
			if id == "" {
				return errors.New("no project id: pass --project or set project.id")
			}

			conns, err := NewBackend(cfg).Discover(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printConnections(cmd.OutOrStdout(), conns)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id (defaults to config)")
	return cmd
}

func printConnections(out io.Writer, conns []providers.Connection) error {
	if len(conns) == 0 {
		fmt.Fprintln(out, "No LLM connections configured.")
		return nil
	}
	w := tabwriter.NewWriter(out, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tADAPTER\tKEY\tMODELS")
	for _, c := range conns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Provider, c.Adapter, orDash(c.DisplaySecretKey), strings.Join(c.CustomModels, ", "))
	}
	return w.Flush()
}

func NewCatalogCmd() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage saved tool and schema definitions",
	}

	var listKind string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			kinds := []playground.DefinitionKind{playground.KindTool, playground.KindSchema}
			if listKind != "" {
				k, err := parseKind(listKind)
				if err != nil {
					return err
				}
				kinds = []playground.DefinitionKind{k}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tNAME\tDESCRIPTION")
			for _, k := range kinds {
				defs, err := db.ListDefinitions(cmd.Context(), k)
				if err != nil {
					return err
				}
				for _, d := range defs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Kind, d.Name, orDash(d.Description))
				}
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&listKind, "kind", "", "tool or schema")

	var addKind, addName, addDescription, addParams, addParamsFile string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Save a new tool or schema definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(addKind)
			if err != nil {
				return err
			}
			params := addParams
			if addParamsFile != "" {
				raw, err := os.ReadFile(addParamsFile)
				if err != nil {
					return fmt.Errorf("read parameters: %w", err)
				}
				params = string(raw)
			}
			def, err := playground.NewDefinition(kind, addName, addDescription, params)
			if err != nil {
				return err
			}

			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.SaveDefinition(cmd.Context(), def); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s %s (%s)\n", def.Kind, def.Name, def.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&addKind, "kind", string(playground.KindTool), "tool or schema")
	addCmd.Flags().StringVar(&addName, "name", "", "Definition name")
	addCmd.Flags().StringVar(&addDescription, "description", "", "Definition description")
	addCmd.Flags().StringVar(&addParams, "parameters", "", "JSON schema of the parameters")
	addCmd.Flags().StringVar(&addParamsFile, "parameters-file", "", "Read the parameters JSON schema from a file")

	removeCmd := &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved definition",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.DeleteDefinition(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, state.ErrNotFound) {
					return fmt.Errorf("definition %q not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}

	catalogCmd.AddCommand(listCmd, addCmd, removeCmd)
	return catalogCmd
}

func parseKind(raw string) (playground.DefinitionKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tool", "tools":
		return playground.KindTool, nil
	case "schema", "schemas":
		return playground.KindSchema, nil
	}
	return "", fmt.Errorf("unknown kind %q (want tool or schema)", raw)
}

func NewHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	return cmd
}

func printRuns(out io.Writer, runs []state.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}
	w := tabwriter.NewWriter(out, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tSTATUS\tMODEL\tPROVIDER\tDURATION\tRESULT")
	for _, r := range runs {
		result := r.Output
		if r.Error != "" {
			result = r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			r.Model,
			r.Provider,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			preview(result, 60),
		)
	}
	return w.Flush()
}

func NewRunCmd() *cobra.Command {
	var transcriptPath string
	var stream bool
	var noRecord bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a YAML transcript once without the TUI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			f, err := os.Open(transcriptPath)
			if err != nil {
				return fmt.Errorf("open transcript: %w", err)
			}
			file, messages, err := playground.LoadTranscript(f)
			f.Close()
			if err != nil {
				return err
			}

			var store RunStore
			if !noRecord {
				db, err := state.Connect(cfg.State.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				store = db
			}

			streaming := cfg.Playground.Streaming
			if file.Streaming != nil {
				streaming = *file.Streaming
			}
			if cmd.Flags().Changed("stream") {
				streaming = stream
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return RunHeadless(ctx, cmd.OutOrStdout(), NewBackend(cfg), store, HeadlessOptions{
				ProjectID:   firstNonEmpty(file.Project, cfg.Project.ID),
				File:        file,
				Messages:    messages,
				Streaming:   streaming,
				Temperature: cfg.Playground.Temperature,
			})
		},
	}
	cmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "YAML transcript file")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the response")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not write the run to history")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

// RunStore is what a headless run needs from the state database.
type RunStore interface {
	ListDefinitions(ctx context.Context, kind playground.DefinitionKind) ([]playground.Definition, error)
	RecordRun(ctx context.Context, r state.Run) error
}

type HeadlessOptions struct {
	ProjectID   string
	File        *playground.TranscriptFile
	Messages    []playground.Message
	Streaming   bool
	Temperature float64
}

// RunHeadless drives one panel through discovery and submission, writing
// the output to out. store may be nil.
func RunHeadless(ctx context.Context, out io.Writer, backend playground.Backend, store RunStore, opts HeadlessOptions) error {
	if strings.TrimSpace(opts.ProjectID) == "" {
		return errors.New(playground.PlaceholderMissingProject)
	}
	registry, req := playground.NewRegistry(playground.PanelOptions{
		Temperature: opts.Temperature,
		Streaming:   opts.Streaming,
	}, project.Resolved(opts.ProjectID))
	defer registry.Close()
	stop := context.AfterFunc(ctx, registry.Close)
	defer stop()

	p := registry.Panels()[0]
	if req != nil {
		registry.ApplyDiscovery(playground.RunDiscovery(backend, req))
	}
	if err := p.DiscoveryErr(); err != nil {
		return fmt.Errorf("discover connections: %w", err)
	}

	if f := opts.File; f != nil {
		if f.Provider != "" || f.Model != "" {
			sel := p.Selection()
			p.Select(playground.Selection{
				Provider: firstNonEmpty(f.Provider, sel.Provider),
				Adapter:  firstNonEmpty(f.Adapter, f.Provider, sel.Adapter),
				Model:    firstNonEmpty(f.Model, sel.Model),
			})
		}
		if err := attachDefinitions(ctx, store, p, f); err != nil {
			return err
		}
	}
	p.Transcript.Set(opts.Messages)

	started := time.Now()
	submit, err := p.BeginSubmit()
	if err != nil {
		return err
	}
	logging.Info().Str("run", submit.RunID).Str("model", p.Selection().Model).Bool("streaming", submit.Streaming).Msg("headless run started")

	result, runErr := playground.RunSubmit(backend, submit, func(text string) {
		fmt.Fprint(out, text)
	})
	p.FinishSubmit(submit.RunID, result, runErr)

	if !submit.Streaming {
		if o, ok := p.Output(); ok {
			fmt.Fprint(out, o.Display())
		}
	}
	fmt.Fprintln(out)

	if store != nil {
		run := state.Run{
			ID:         submit.RunID,
			PanelID:    p.ID(),
			ProjectID:  opts.ProjectID,
			Provider:   p.Selection().Provider,
			Adapter:    p.Selection().Adapter,
			Model:      p.Selection().Model,
			Streaming:  submit.Streaming,
			Status:     p.Status().String(),
			Error:      p.SubmitError(),
			StartedAt:  started.UTC(),
			FinishedAt: time.Now().UTC(),
		}
		if o, ok := p.Output(); ok {
			run.Output = o.Display()
		}
		if err := store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
			logging.Warn().Err(err).Str("run", run.ID).Msg("run history write failed")
		}
	}

	if runErr != nil {
		return errors.New(p.SubmitError())
	}
	return nil
}

func attachDefinitions(ctx context.Context, store RunStore, p *playground.Panel, f *playground.TranscriptFile) error {
	if len(f.Tools) == 0 && f.Schema == "" {
		return nil
	}
	if store == nil {
		return errors.New("transcript attaches tools or a schema but history storage is disabled")
	}
	lookup := func(kind playground.DefinitionKind, ref string) (playground.Definition, error) {
		defs, err := store.ListDefinitions(ctx, kind)
		if err != nil {
			return playground.Definition{}, err
		}
		for _, d := range defs {
			if d.ID == ref || d.Name == ref {
				return d, nil
			}
		}
		return playground.Definition{}, fmt.Errorf("%s %q not found in catalog", kind, ref)
	}
	for _, ref := range f.Tools {
		d, err := lookup(playground.KindTool, ref)
		if err != nil {
			return err
		}
		p.Attachments.AddTool(d)
	}
	if f.Schema != "" {
		d, err := lookup(playground.KindSchema, f.Schema)
		if err != nil {
			return err
		}
		p.Attachments.SetSchema(d)
	}
	return nil
}

func NewStubCmd() *cobra.Command {
	var addr, session, seedProject string
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve a local fake backend for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			srv := stubserver.New(stubserver.Config{
				Addr:          addr,
				SessionCookie: cfg.Backend.SessionCookie,
				Session:       session,
				ChunkDelay:    delay,
			})
			if seedProject != "" {
				srv.Seed(seedProject, providers.Connection{
					Provider:         "openai",
					Adapter:          "openai",
					DisplaySecretKey: "...stub",
					CustomModels:     []string{"gpt-4o-mini"},
				})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Stub backend listening on %s. Press Ctrl+C to stop.\n", addr)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3000", "Listen address")
	cmd.Flags().StringVar(&session, "session", "", "Required session token (empty accepts any)")
	cmd.Flags().StringVar(&seedProject, "seed", "", "Project id to seed with one OpenAI connection")
	cmd.Flags().DurationVar(&delay, "chunk-delay", 40*time.Millisecond, "Delay between streamed chunks")
	return cmd
}

func openStore() (*state.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return state.Connect(cfg.State.DBPath)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func preview(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"linkboard/internal/app"
	"linkboard/internal/config"
	"linkboard/internal/db"
	"linkboard/internal/domain"
	"linkboard/internal/engine"
	"linkboard/internal/migrate"
	"linkboard/internal/queue"
	"linkboard/internal/server"
	"linkboard/internal/worker"
)

var rootCmd = &cobra.Command{
	Use:   "lb",
	Short: "Linkboard CLI",
	Long: `Linkboard turns backlink insights into a planner of SEO tasks.
- Domain: a site you own or collaborate on. Owners hold every capability; members get the permissions of their role.
- Plan: a generated proposal of tasks for a horizon of days. New plans start as drafts.
- Apply: materializes the latest draft into tasks. Tasks already proposed by an earlier plan are refreshed, not duplicated.
- Board: the active planned tasks bucketed into today, week and month.
- Generation runs on a worker. Without a Redis URL the server runs it in process.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LINKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("user", "local-user", "acting user id")
	flags.String("redis-url", "", "Redis URL for the job queue (empty runs jobs in process)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	for _, name := range []string{"workspace", "json", "user", "redis-url", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(domainCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(devTokenCmd())
	rootCmd.AddCommand(logCmd())
}

func newLogger() *slog.Logger {
	return worker.NewLogger(viper.GetString("log-level"), viper.GetString("log-format"))
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default linkboard.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func migrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			pending, err := migrate.Pending(conn)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("Schema is up to date")
				return nil
			}
			for _, m := range pending {
				fmt.Printf("pending %03d %s\n", m.Version, m.Name)
			}
			if dryRun {
				return nil
			}
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Printf("Applied %d migration(s)\n", len(pending))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list pending migrations")
	return cmd
}

func serveCmd() *cobra.Command {
	var basePath string
	var embeddedWorker, devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("LINKBOARD_JWT_SECRET is required for bearer auth")
			}
			rt, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer rt.Close()
			redisURL := viper.GetString("redis-url")
			q, mem, closeQueue, err := rt.Queue(redisURL)
			if err != nil {
				return err
			}
			defer closeQueue()
			e := rt.Engine(q)

			proc, err := rt.Processor(logger)
			if err != nil {
				return err
			}
			switch {
			case mem != nil:
				logger.Info("No Redis URL set, running plan generation in process")
				go worker.Inline{Queue: mem, Processor: proc}.Run(ctx)
			case embeddedWorker:
				stopWorker, err := worker.Start(worker.Options{RedisURL: redisURL, Queue: rt.Config.Planner.Queue}, proc)
				if err != nil {
					return err
				}
				defer stopWorker()
			}
			server.StartWebhookDispatcher(ctx, e, logger)

			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, EnableDevLogin: devLogin, Logger: logger},
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			addr := viper.GetString("addr")
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			logger.Info("Serving Linkboard API", "addr", addr, "base_path", basePath, "docs", basePath+"/docs")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&embeddedWorker, "embedded-worker", false, "also consume the Redis queue in this process")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login")
	_ = viper.BindEnv("jwt-secret", "LINKBOARD_JWT_SECRET")
	return cmd
}

func workerCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume plan generation jobs from Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			redisURL := viper.GetString("redis-url")
			if redisURL == "" {
				return fmt.Errorf("--redis-url or LINKBOARD_REDIS_URL is required")
			}
			rt, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer rt.Close()
			logger := newLogger()
			proc, err := rt.Processor(logger)
			if err != nil {
				return err
			}
			return worker.Run(worker.Options{
				RedisURL:    redisURL,
				Concurrency: concurrency,
				Queue:       rt.Config.Planner.Queue,
			}, proc)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 5, "concurrent jobs")
	return cmd
}

func domainCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "domain", Short: "Manage domains"}

	var name string
	add := &cobra.Command{
		Use:   "add <host>",
		Short: "Register a domain owned by --user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDomain(ctx, currentUser(), args[0], name)
				if err != nil {
					return err
				}
				return printDomains([]domain.Domain{d})
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List domains visible to --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListDomains(ctx, currentUser())
				if err != nil {
					return err
				}
				return printDomains(items)
			})
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plan", Short: "Generate and apply action plans"}

	board := &cobra.Command{
		Use:   "board <domain-id>",
		Short: "Show the planner board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.Board(ctx, args[0], currentUser())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(b)
				}
				if b.Plan != nil {
					fmt.Printf("Draft plan %s (%d days, created %s)\n", b.Plan.ID, b.Plan.PeriodDays, b.Plan.CreatedAt)
				} else {
					fmt.Println("No draft plan")
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Group", "ID", "Title", "Priority", "Impact", "Status", "Due"})
				for _, g := range domain.PlannerGroups {
					for _, t := range b.Bucket(g) {
						tw.AppendRow(table.Row{g, t.ID, t.Title, t.Priority, t.ImpactScore, t.Status, deref(t.DueAt)})
					}
				}
				tw.Render()
				return nil
			})
		},
	}

	var period int
	generate := &cobra.Command{
		Use:   "generate <domain-id>",
		Short: "Request a new draft plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer rt.Close()
			q, mem, closeQueue, err := rt.Queue(viper.GetString("redis-url"))
			if err != nil {
				return err
			}
			defer closeQueue()
			e := rt.Engine(q)
			ack, err := e.RequestPlan(ctx, args[0], currentUser(), period)
			if err != nil {
				return err
			}
			if mem == nil {
				fmt.Printf("Queued plan generation %s on %s (%d days)\n", ack.TaskID, ack.Queue, ack.PeriodDays)
				return nil
			}
			// No broker: run the job now so the draft exists when the command returns.
			proc, err := rt.Processor(newLogger())
			if err != nil {
				return err
			}
			if failed := (worker.Inline{Queue: mem, Processor: proc}).RunOnce(ctx); failed > 0 {
				return fmt.Errorf("plan generation failed")
			}
			fmt.Printf("Generated a draft plan for %d days\n", ack.PeriodDays)
			return nil
		},
	}
	generate.Flags().IntVar(&period, "period", 0, "planning horizon in days (config default when 0)")

	apply := &cobra.Command{
		Use:   "apply <domain-id>",
		Short: "Apply the latest draft plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ApplyLatestDraft(ctx, args[0], currentUser())
				if err != nil {
					if errors.Is(err, engine.ErrNoDraftPlan) {
						return fmt.Errorf("no draft plan to apply; run 'lb plan generate' first")
					}
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Println(res.Message)
				return nil
			})
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list <domain-id>",
		Short: "List plans, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plans, err := e.ListPlans(ctx, args[0], currentUser(), limit)
				if err != nil {
					return err
				}
				return printPlans(plans)
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "max plans")

	archive := &cobra.Command{
		Use:   "archive <domain-id> <plan-id>",
		Short: "Archive a plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.ArchivePlan(ctx, args[0], args[1], currentUser())
				if err != nil {
					return err
				}
				return printPlans([]domain.Plan{p})
			})
		},
	}

	cmd.AddCommand(board, generate, apply, list, archive)
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}

	var status string
	list := &cobra.Command{
		Use:   "list <domain-id>",
		Short: "List tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx, args[0], currentUser(), status)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter")

	var in engine.ManualTaskInput
	add := &cobra.Command{
		Use:   "add <domain-id>",
		Short: "Create a manual task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in.DomainID = args[0]
				in.UserID = currentUser()
				t, err := e.CreateManualTask(ctx, in)
				if err != nil {
					return err
				}
				return printTasks([]domain.Task{t})
			})
		},
	}
	add.Flags().StringVar(&in.Title, "title", "", "task title")
	add.Flags().StringVar(&in.Priority, "priority", "p2", "p1, p2 or p3")
	add.Flags().StringVar(&in.Description, "description", "", "description")
	add.Flags().StringVar(&in.DueAt, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	_ = add.MarkFlagRequired("title")

	setStatus := &cobra.Command{
		Use:   "status <domain-id> <task-id> <status>",
		Short: "Change a task's status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTaskStatus(ctx, args[0], args[1], currentUser(), args[2])
				if err != nil {
					return err
				}
				return printTasks([]domain.Task{t})
			})
		},
	}

	cmd.AddCommand(list, add, setStatus)
	return cmd
}

func memberCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "member", Short: "Manage domain collaborators"}
	grant := &cobra.Command{
		Use:   "grant <domain-id> <user-id> <role>",
		Short: "Grant a role (owner only)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.GrantMember(ctx, args[0], currentUser(), args[1], args[2])
				if err != nil {
					return err
				}
				return printMembers([]domain.Member{m})
			})
		},
	}
	revoke := &cobra.Command{
		Use:   "revoke <domain-id> <user-id>",
		Short: "Remove a collaborator (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RevokeMember(ctx, args[0], currentUser(), args[1]); err != nil {
					return err
				}
				fmt.Println("Revoked", args[1])
				return nil
			})
		},
	}
	list := &cobra.Command{
		Use:   "list <domain-id>",
		Short: "List collaborators",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				members, err := e.ListMembers(ctx, args[0], currentUser())
				if err != nil {
					return err
				}
				return printMembers(members)
			})
		},
	}
	cmd.AddCommand(grant, revoke, list)
	return cmd
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys of --user"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the secret is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, plain, err := e.CreateAPIKey(ctx, currentUser(), name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "key": plain})
				}
				fmt.Printf("API key %s created.\nSecret (shown once): %s\n", key.ID, plain)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label")
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.ListAPIKeys(ctx, currentUser())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RevokeAPIKey(ctx, currentUser(), args[0]); err != nil {
					return err
				}
				fmt.Println("Revoked", args[0])
				return nil
			})
		},
	}
	cmd.AddCommand(create, list, revoke)
	return cmd
}

func devTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Mint a bearer token for --user signed with LINKBOARD_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := server.SignToken(viper.GetString("jwt-secret"), currentUser(), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = viper.BindEnv("jwt-secret", "LINKBOARD_JWT_SECRET")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	var n int
	var evtType string
	tail := &cobra.Command{
		Use:   "tail <domain-id>",
		Short: "Show the newest events of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evts, err := e.DomainEvents(ctx, args[0], currentUser(), evtType, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, evt := range evts {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.AddCommand(tail)
	return cmd
}

// --- helpers ---

func currentUser() string {
	return viper.GetString("user")
}

// withEngine opens the workspace for a local command. Commands that enqueue
// jobs build their own queue instead.
func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	rt, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt.Engine(queue.NewMemory()))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDomains(items []domain.Domain) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Host", "Name", "Owner", "Created"})
	for _, d := range items {
		tw.AppendRow(table.Row{d.ID, d.Host, d.Name, d.OwnerID, d.CreatedAt})
	}
	tw.Render()
	return nil
}

func printPlans(items []domain.Plan) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Status", "Days", "Requested by", "Created", "Applied", "Archived"})
	for _, p := range items {
		tw.AppendRow(table.Row{p.ID, p.Status, p.PeriodDays, p.RequestedBy, p.CreatedAt, deref(p.AppliedAt), deref(p.ArchivedAt)})
	}
	tw.Render()
	return nil
}

func printTasks(items []domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Priority", "Impact", "Status", "Group", "Due", "By"})
	for _, t := range items {
		group := ""
		if t.PlannerGroup != nil {
			group = string(*t.PlannerGroup)
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.Priority, t.ImpactScore, t.Status, group, deref(t.DueAt), t.CreatedBy})
	}
	tw.Render()
	return nil
}

func printMembers(items []domain.Member) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"User", "Role", "Since"})
	for _, m := range items {
		tw.AppendRow(table.Row{m.UserID, m.Role, m.CreatedAt})
	}
	tw.Render()
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

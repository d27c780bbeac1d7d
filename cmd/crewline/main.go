package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"crewline/internal/app"
	"crewline/internal/config"
	"crewline/internal/ctxlog"
	"crewline/internal/db"
	"crewline/internal/migrate"
	"crewline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "crewline",
	Short: "Crewline project planning CLI",
	Long: `Crewline plans volunteer projects as a task graph.
- Project: a team of members (gainers, mentors, nonprofits) sharing one board.
- Milestones: ordered checkpoints; tasks may belong to one.
- Tasks: Todo -> InProgress -> Done, with Blocked as a manual flag. A task
  can only be Done once every task it depends on is Done.
- Dependencies: edges between tasks of one project; cycles are rejected.
- Roadmap: a generated plan of milestones, tasks and subtasks applied in one go.
- Event log: every change, view with 'crewline log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, failure("error:"), err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CREWLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.StringP("config", "c", "", "config file (default <workspace>/crewline.yml)")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "actor identifier")
	flags.String("project", "", "project id (defaults to the only project)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	for _, name := range []string{"workspace", "config", "json", "actor-id", "project", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(milestoneCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(subtaskCmd())
	rootCmd.AddCommand(depCmd())
	rootCmd.AddCommand(refCmd())
	rootCmd.AddCommand(roadmapCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(tokenCmd())
}

// loadConfig reads the config file and layers CREWLINE_* overrides on top.
func loadConfig() (*config.Config, error) {
	workspace := viper.GetString("workspace")
	path := viper.GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.LoadOptional(config.Path(workspace))
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}
	cfg.Database.Workspace = workspace
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("generator-provider"); v != "" {
		cfg.Generator.Provider = v
	}
	if v := viper.GetString("generator-model"); v != "" {
		cfg.Generator.Model = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := ctxlog.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	ctx = ctxlog.WithLogger(ctx, logger)
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withProject is withApp plus the resolved --project.
func withProject(ctx context.Context, fn func(context.Context, *app.App, string) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		projectID, err := a.ResolveProject(ctx, viper.GetString("project"))
		if err != nil {
			return err
		}
		return fn(ctx, a, projectID)
	})
}

func actorID() string {
	return viper.GetString("actor-id")
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cfg := a.Config
				if cmd.Flags().Changed("addr") {
					cfg.Server.Addr = addr
				}
				if cmd.Flags().Changed("base-path") {
					cfg.Server.BasePath = basePath
				}
				if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowLegacyActorHeader {
					return fmt.Errorf("auth.jwt_secret (or CREWLINE_JWT_SECRET) is required for bearer auth")
				}
				sc := server.Config{
					Engine:   a.Engine,
					Planner:  a.Planner,
					Sink:     a.Sink,
					BasePath: cfg.Server.BasePath,
					Logger:   a.Logger,
					Auth: server.AuthConfig{
						JWTSecret:              cfg.Auth.JWTSecret,
						AllowLegacyActorHeader: cfg.Auth.AllowLegacyActorHeader,
						DevLogin:               cfg.Auth.DevLogin,
					},
				}
				if a.Realtime != nil {
					sc.Realtime = a.Realtime.Handler()
					sc.RealtimePath = cfg.Notifications.Realtime.Path
				}
				handler, err := server.New(sc)
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Logger.Info("serving crewline API", "addr", cfg.Server.Addr, "base_path", cfg.Server.BasePath, "realtime", a.Realtime != nil)
				fmt.Printf("Serving crewline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func migrateCmd() *cobra.Command {
	m := &cobra.Command{Use: "migrate", Short: "Database schema migrations"}
	m.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			st, err := migrate.GetStatus(conn)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(st)
			}
			state := success("up to date")
			if st.Pending {
				state = warning("pending")
			}
			if st.Dirty {
				state = failure("dirty")
			}
			fmt.Printf("Schema version %d of %d (%s)\n", st.CurrentVersion, st.LatestVersion, state)
			return nil
		},
	})
	m.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Println(success("Database at"), db.Path(viper.GetString("workspace")), "is up to date")
			return nil
		},
	})
	return m
}

func configCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Manage crewline.yml"}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			if path == "" {
				path = config.Path(viper.GetString("workspace"))
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println(success("Wrote"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	c.AddCommand(initCmd)
	c.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret != "" {
				cfg.Auth.JWTSecret = "********"
			}
			if cfg.Generator.APIKey != "" {
				cfg.Generator.APIKey = "********"
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			b, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(b))
			return nil
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			fmt.Println(success("config ok"))
			return nil
		},
	})
	return c
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for --actor-id using the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := server.SignToken(cfg.Auth.JWTSecret, actorID(), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

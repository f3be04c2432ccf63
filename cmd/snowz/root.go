package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"Snowz-Migrator/internal/api"
	"Snowz-Migrator/internal/app"
	"Snowz-Migrator/internal/config"
	"Snowz-Migrator/internal/schema"
	"Snowz-Migrator/pkg/logger"
)

// cli 保存全局参数与加载后的配置。
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "snowz",
		Short: "Resolve build descriptors and migrate database schemas",
		Long: `snowz resolves a project's build descriptor into a validated, normalized
form and keeps database schemas in line with declared table models.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (defaults to $"+config.EnvConfigPath+" or "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		c.newResolveCommand(),
		c.newPlanCommand(),
		c.newMigrateCommand(),
		c.newHistoryCommand(),
		c.newServeCommand(),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.LoadOrDefault(config.ResolvePath(c.configPath))
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	c.cfg = cfg
	return nil
}

// runtime 根据配置构造服务，调用方负责 Close。
func (c *cli) runtime(ctx context.Context) (*app.Runtime, error) {
	return app.Build(ctx, c.cfg)
}

func (c *cli) newResolveCommand() *cobra.Command {
	var (
		version  string
		snapshot bool
		output   string
	)
	cmd := &cobra.Command{
		Use:   "resolve [descriptor]",
		Short: "Validate and normalize a build descriptor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.Descriptor.Path
			if len(args) == 1 {
				path = args[0]
			}
			overrides := app.Overrides{Version: version}
			if cmd.Flags().Changed("snapshot") {
				overrides.Snapshot = &snapshot
			}

			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			desc, err := rt.Service.ResolveFile(cmd.Context(), path, overrides)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(output) {
			case "", "text":
				_, err = fmt.Fprintln(out, renderDescriptor(desc))
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				err = enc.Encode(desc)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				err = enc.Encode(desc)
				if err == nil {
					err = enc.Close()
				}
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "override the base version")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "override the snapshot flag")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

type targetFlags struct {
	models string
	url    string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.models, "models", "", "YAML model file (defaults to descriptor.models_path)")
	cmd.Flags().StringVar(&f.url, "url", "", "jdbc connection string (defaults to database.url)")
}

func (c *cli) tables(f targetFlags) ([]schema.Table, error) {
	path := f.models
	if path == "" {
		path = c.cfg.Descriptor.ModelsPath
	}
	return app.LoadTables(path)
}

func (c *cli) newPlanCommand() *cobra.Command {
	var flags targetFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the DDL needed to bring the database in line with the models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables, err := c.tables(flags)
			if err != nil {
				return err
			}
			target, db, err := app.OpenTarget(cmd.Context(), c.cfg.Database, flags.url)
			if err != nil {
				return err
			}
			defer db.Close()

			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			plan, err := rt.Service.Plan(cmd.Context(), target, tables)
			if err != nil {
				return err
			}
			if plan.Empty() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "-- schema is up to date")
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), plan.Script())
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) newMigrateCommand() *cobra.Command {
	var (
		flags          targetFlags
		descriptorPath string
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the migration plan and record it in the history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables, err := c.tables(flags)
			if err != nil {
				return err
			}
			if descriptorPath == "" {
				descriptorPath = c.cfg.Descriptor.Path
			}

			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			desc, err := rt.Service.ResolveFile(cmd.Context(), descriptorPath, app.Overrides{})
			if err != nil {
				return err
			}
			target, db, err := app.OpenTarget(cmd.Context(), c.cfg.Database, flags.url)
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := rt.Service.Migrate(cmd.Context(), desc, target, tables)
			if report.Record.RunID != "" {
				fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
			}
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&descriptorPath, "descriptor", "", "build descriptor (defaults to descriptor.path)")
	return cmd
}

func (c *cli) newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent migration runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			records, err := rt.Service.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderHistory(records))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func (c *cli) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			logger.Named("api").Info("HTTP 服务启动", "address", c.cfg.Server.Address)
			err = api.NewServer(c.cfg.Server.Address, rt.Service).Start(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

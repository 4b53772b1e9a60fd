package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"demandas/internal/backup"
	"demandas/internal/config"
	"demandas/internal/db"
	"demandas/internal/domain"
	"demandas/internal/engine"
	"demandas/internal/logging"
	"demandas/internal/migrate"
	"demandas/internal/realtime"
	"demandas/internal/repo"
	"demandas/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "demandas",
	Short: "Demandas CLI",
	Long: `Demandas tracks demand records through their lifecycle with a full audit
trail, notifications and JSON backup snapshots.
- Workspace: the .demandas directory holding the database and backups.
- Demanda: a demand record tagged DEM-<digits>; statuses move through an
  approval flow (pendente, aprovada, reprovada, finalizado_pendente_aprovacao,
  atribuida_pendente_aceitacao).
- Auditoria: every create/update/delete/reassign/extension is recorded with
  before and after snapshots; view with 'demandas auditoria tail'.
- Backups: timestamped JSON exports, taken on a schedule, on shutdown and on
  sensitive changes; old automatic ones are pruned.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DEMANDAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("usuario-id", "local-user", "acting user identifier")
	rootCmd.PersistentFlags().Bool("force", false, "bypass status transition checks")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("usuario-id", rootCmd.PersistentFlags().Lookup("usuario-id"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(demandaCmd())
	rootCmd.AddCommand(importarCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(auditoriaCmd())
}

// withEngine opens the workspace database, migrates it and hands a ready
// engine to fn. The backup engine is wired but not started; CLI runs take
// event snapshots only.
func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, "demandas")
	if err != nil {
		return err
	}
	defer log.Sync()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	backups := &backup.Engine{
		Repo:          repo.Repo{DB: conn},
		Dir:           cfg.Backup.Dir,
		Interval:      cfg.Backup.Interval,
		SweepInterval: cfg.Backup.SweepInterval,
		Retention:     cfg.Backup.Retention,
		Log:           log,
	}
	e := engine.New(conn, backups, nil, log)
	return fn(ctx, e)
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format, "demandas")
			if err != nil {
				return err
			}
			defer log.Sync()
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}

			backups := &backup.Engine{
				Repo:          repo.Repo{DB: conn},
				Dir:           cfg.Backup.Dir,
				Interval:      cfg.Backup.Interval,
				SweepInterval: cfg.Backup.SweepInterval,
				Retention:     cfg.Backup.Retention,
				Log:           log,
			}
			hub := realtime.NewHub(log)
			e := engine.New(conn, backups, hub, log)

			jwtSecret := os.Getenv("DEMANDAS_JWT_SECRET")
			if jwtSecret == "" && !cfg.Auth.AllowLegacyUserHeader {
				return fmt.Errorf("DEMANDAS_JWT_SECRET is required for bearer auth (or enable auth.allow_legacy_user_header)")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				Hub:      hub,
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:             jwtSecret,
					AllowLegacyUserHeader: cfg.Auth.AllowLegacyUserHeader,
					Log:                   log,
				},
			})
			if err != nil {
				return err
			}

			backups.Start()
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
				backups.Stop(shutdownCtx)
			}()

			log.Info("serving demandas API",
				zap.String("addr", cfg.Server.Addr), zap.String("base_path", cfg.Server.BasePath))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func demandaCmd() *cobra.Command {
	demanda := &cobra.Command{
		Use:   "demanda",
		Short: "Manage demandas",
	}
	demanda.AddCommand(demandaCreateCmd())
	demanda.AddCommand(demandaListCmd())
	demanda.AddCommand(demandaShowCmd())
	demanda.AddCommand(demandaDeleteCmd())
	return demanda
}

func demandaCreateCmd() *cobra.Command {
	var opts engine.CreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a demanda",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("usuario-id")
			opts.Origin = "cli"
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDemanda(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "tag (generated when omitted)")
	cmd.Flags().StringVar(&opts.NomeDemanda, "nome", "", "demanda name")
	cmd.Flags().StringVar(&opts.Descricao, "descricao", "", "description")
	cmd.Flags().StringVar(&opts.Categoria, "categoria", "", "category")
	cmd.Flags().StringVar(&opts.Prioridade, "prioridade", "", "priority")
	cmd.Flags().StringVar(&opts.Complexidade, "complexidade", "", "complexity")
	cmd.Flags().StringVar(&opts.Localizacao, "localizacao", "", "location")
	cmd.Flags().StringVar(&opts.DataLimite, "data-limite", "", "deadline (ISO date)")
	cmd.Flags().Int64Var(&opts.FuncionarioID, "funcionario-id", 0, "owner employee id")
	cmd.Flags().BoolVar(&opts.IsRotina, "rotina", false, "recurring routine demanda")
	cmd.Flags().IntSliceVar(&opts.DiasSemana, "dias-semana", nil, "weekdays for routines (0=Sunday)")
	_ = cmd.MarkFlagRequired("nome")
	_ = cmd.MarkFlagRequired("categoria")
	_ = cmd.MarkFlagRequired("data-limite")
	return cmd
}

func demandaListCmd() *cobra.Command {
	var f repo.DemandaFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List demandas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListDemandas(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				printDemandaTable(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().Int64Var(&f.FuncionarioID, "funcionario-id", 0, "owner filter")
	cmd.Flags().StringVar(&f.Categoria, "categoria", "", "category filter")
	cmd.Flags().StringVar(&f.Prioridade, "prioridade", "", "priority filter")
	cmd.Flags().IntVar(&f.Mes, "mes", 0, "creation month filter (1-12)")
	cmd.Flags().IntVar(&f.Ano, "ano", 0, "creation year filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum rows")
	return cmd
}

func demandaShowCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a demanda",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.GetDemanda(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "demanda id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func demandaDeleteCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a demanda (audited, snapshot taken first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteDemanda(ctx, id, viper.GetString("usuario-id"), "cli"); err != nil {
					return err
				}
				fmt.Printf("demanda %d deleted\n", id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "demanda id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func importarCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "importar",
		Short: "Batch import demandas from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var payloads []map[string]any
			if err := json.Unmarshal(data, &payloads); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.BatchImport(ctx, payloads, viper.GetString("usuario-id"), "cli")
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file holding an array of demandas")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func backupCmd() *cobra.Command {
	b := &cobra.Command{
		Use:   "backup",
		Short: "Manage backup snapshots",
	}
	b.AddCommand(backupNowCmd())
	b.AddCommand(backupListCmd())
	b.AddCommand(backupRestaurarCmd())
	return b
}

func backupNowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "now",
		Short: "Take a manual snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				name, err := e.Backups.Snapshot(ctx, backup.KindManual)
				if err != nil {
					return err
				}
				fmt.Println(name)
				return nil
			})
		},
	}
	return cmd
}

func backupListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				infos, err := e.Backups.List()
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(infos)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"File", "Kind", "Size", "Created"})
				for _, info := range infos {
					t.AppendRow(table.Row{info.Name, info.Kind, info.Size, info.CreatedAt})
				}
				t.Render()
				return nil
			})
		},
	}
	return cmd
}

func backupRestaurarCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "restaurar",
		Short: "Restore demandas from a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				env, err := e.Backups.ReadSnapshot(file)
				if err != nil {
					return err
				}
				records := make([]map[string]any, 0, len(env.Demandas))
				for _, d := range env.Demandas {
					data, err := json.Marshal(d)
					if err != nil {
						continue
					}
					var m map[string]any
					if err := json.Unmarshal(data, &m); err != nil {
						continue
					}
					records = append(records, m)
				}
				res, err := e.Restore(ctx, records, viper.GetString("usuario-id"), "cli")
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "snapshot file name inside the backup directory")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func auditoriaCmd() *cobra.Command {
	a := &cobra.Command{
		Use:   "auditoria",
		Short: "Inspect the audit trail",
	}
	a.AddCommand(auditoriaTailCmd())
	return a
}

func auditoriaTailCmd() *cobra.Command {
	var n int
	var acao, tabela string
	var registroID int64
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest audit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAuditoria(ctx, repo.AuditoriaFilters{
					Acao: acao, Tabela: tabela, RegistroID: registroID, Limit: n,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "Acao", "Tabela", "Registro", "Usuario", "Data"})
				for _, reg := range items {
					t.AppendRow(table.Row{reg.ID, reg.Acao, reg.Tabela, reg.RegistroID, reg.UsuarioID, reg.Data})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of records")
	cmd.Flags().StringVar(&acao, "acao", "", "action filter")
	cmd.Flags().StringVar(&tabela, "tabela", "", "table filter")
	cmd.Flags().Int64Var(&registroID, "registro-id", 0, "record id filter")
	return cmd
}

func printDemandaTable(items []domain.Demanda) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Tag", "Nome", "Status", "Prioridade", "Limite"})
	for _, d := range items {
		t.AppendRow(table.Row{d.ID, d.Tag, d.NomeDemanda, d.Status, d.Prioridade, d.DataLimite})
	}
	t.Render()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

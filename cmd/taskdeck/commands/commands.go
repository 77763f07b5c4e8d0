package commands

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/taskdeck/core/internal/adapters/kv"
	"github.com/taskdeck/core/internal/adapters/repository"
	"github.com/taskdeck/core/internal/application/services"
	"github.com/taskdeck/core/internal/infrastructure/config"
	"github.com/taskdeck/core/internal/infrastructure/database"
	"github.com/taskdeck/core/internal/infrastructure/logger"
	"github.com/taskdeck/core/internal/infrastructure/server"
	"github.com/taskdeck/core/internal/ports"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the local TaskDeck shell",
		Long:  "Start the local HTTP shell with all configured routes and middleware",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the task collection as JSON",
		Long:  "Write the full task collection to a file as pretty-printed JSON, or to stdout",
		Run: func(cmd *cobra.Command, args []string) {
			output, _ := cmd.Flags().GetString("output")
			runExport(output)
		},
	}

	exportCmd.Flags().String("output", "", "Destination file (default: stdout)")
	return exportCmd
}

// NewImportCommand creates the import command
func NewImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import tasks from a JSON file",
		Long:  "Merge a JSON array of task records into the collection; existing ids are overwritten",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runImport(args[0])
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations for the postgres storage driver (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("up")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("down")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print TaskDeck version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("TaskDeck Core v1.0.0")
		},
	}
}

// openStore builds the key-value store named by the storage driver.
func openStore(cfg *config.Config, appLogger *logger.Logger) (ports.KVStore, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := database.New(cfg.Storage.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return kv.NewSQLStore(db), nil
	default:
		store, err := kv.NewFileStore(cfg.Storage.DataDir, appLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return store, nil
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	store, err := openStore(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to open storage", "error", err)
	}
	defer store.Close()

	srv, err := server.New(cfg, store, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize server", "error", err)
	}

	appLogger.Info("Starting TaskDeck shell",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"driver", cfg.Storage.Driver,
	)

	if err := srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)); err != nil {
		appLogger.Fatal("Server failed to start", "error", err)
	}
}

func runExport(output string) {
	store, appLogger := mustOpen()
	defer store.Close()
	defer appLogger.Close()

	taskRepo, err := repository.NewTaskRepository(context.Background(), store, appLogger)
	if err != nil {
		log.Fatalf("Failed to load tasks: %v", err)
	}

	transferService := services.NewTransferService(taskRepo, appLogger)
	payload, err := transferService.Export(context.Background())
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	if output == "" {
		fmt.Println(string(payload))
		return
	}

	if err := os.WriteFile(output, payload, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", output, err)
	}
	fmt.Printf("Exported collection to %s\n", output)
}

func runImport(path string) {
	store, appLogger := mustOpen()
	defer store.Close()
	defer appLogger.Close()

	payload, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}

	taskRepo, err := repository.NewTaskRepository(context.Background(), store, appLogger)
	if err != nil {
		log.Fatalf("Failed to load tasks: %v", err)
	}

	transferService := services.NewTransferService(taskRepo, appLogger)
	summary, err := transferService.Import(context.Background(), payload)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Printf("Import completed: %d inserted, %d updated\n", summary.Inserted, summary.Updated)
}

// mustOpen loads config, the logger, and the configured store, exiting
// on any failure.
func mustOpen() (ports.KVStore, *logger.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	store, err := openStore(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	return store, appLogger
}

func runMigration(direction string) {
	m, db := newMigrator()
	defer db.Close()

	var err error
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Migration failed: %v", err)
	}

	if err == migrate.ErrNoChange {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
}

func showMigrationVersion() {
	m, db := newMigrator()
	defer db.Close()

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}

func newMigrator() (*migrate.Migrate, *database.DB) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Storage.Driver != "postgres" {
		log.Fatal("Migrations apply to the postgres storage driver only")
	}

	db, err := database.New(cfg.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	return m, db
}

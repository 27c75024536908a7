// Package container provides dependency injection and lifecycle management
// for the expense workflow service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/service"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/config"
	"github.com/garyjia/expense-workflow/internal/infrastructure/auth"
	"github.com/garyjia/expense-workflow/internal/infrastructure/export"
	infraLark "github.com/garyjia/expense-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-workflow/internal/infrastructure/external/notify"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-workflow/internal/infrastructure/receipt"
	"github.com/garyjia/expense-workflow/internal/infrastructure/storage"
	"github.com/garyjia/expense-workflow/internal/infrastructure/worker"
	"github.com/garyjia/expense-workflow/migrations"
	"github.com/garyjia/expense-workflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds receipt storage components.
type StorageBundle struct {
	FileStorage port.FileStorage
	Catalog     port.ReceiptCatalog
	Inspector   port.ReceiptInspector
}

// ProvideDatabase opens the database and applies pending migrations. Migrations come from
// cfg.MigrationsDir when set and from the binary otherwise.
func ProvideDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrationsDir(cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrations(migrations.FS)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideReportRepository creates the report repository on the transaction manager.
func ProvideReportRepository(db *sqlite.DB, logger *zap.Logger) (*repository.ReportRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return repository.NewReportRepository(db, logger), nil
}

// ProvideStorage creates receipt storage and the receipt inspector.
func ProvideStorage(cfg *config.Config, logger *zap.Logger) (*StorageBundle, error) {
	if cfg.Storage.ReceiptDir == "" {
		return nil, fmt.Errorf("receipt directory is required")
	}
	files := storage.NewLocalFileStorage(cfg.Storage.ReceiptDir, logger)
	return &StorageBundle{
		FileStorage: files,
		Catalog:     files,
		Inspector:   receipt.NewInspector(cfg.Receipts.MaxPages, logger),
	}, nil
}

// ProvideWorkers registers the background workers enabled by configuration.
func ProvideWorkers(cfg config.ReceiptsConfig, storage *StorageBundle, index port.ReceiptIndex, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	if cfg.SweepInterval > 0 {
		manager.Register(worker.NewReceiptSweeper(worker.SweeperConfig{
			Interval: cfg.SweepInterval,
			Grace:    cfg.OrphanGrace,
		}, storage.Catalog, index, logger))
	}
	return manager
}

// ProvideNotifier returns the Lark notifier when enabled and a logging notifier otherwise.
func ProvideNotifier(cfg config.LarkConfig, logger *zap.Logger) port.Notifier {
	if !cfg.Enabled {
		logger.Info("Lark notifications disabled, logging status changes instead")
		return notify.NewLogNotifier(logger)
	}

	sdk := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.APITimeout,
	}, logger)
	return infraLark.NewNotifier(infraLark.NewMessenger(sdk, logger), logger)
}

// ProvideAuthenticator creates the bearer token authenticator.
func ProvideAuthenticator(cfg config.AuthConfig) *auth.Authenticator {
	return auth.NewAuthenticator(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTL, nil)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}))
}

// WorkflowDeps holds dependencies for the workflow engine.
type WorkflowDeps struct {
	Reports    port.ReportRepository
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps.Reports == nil || deps.TxManager == nil {
		return nil, fmt.Errorf("report repository and transaction manager are required")
	}

	opts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger}),
	}
	if deps.Now != nil {
		opts = append(opts, workflow.WithClock(deps.Now))
	}
	return workflow.NewEngine(deps.Reports, deps.TxManager, opts...), nil
}

// ServiceDeps holds dependencies for creating application services.
type ServiceDeps struct {
	Config     *config.Config
	Reports    port.ReportRepository
	TxManager  port.TransactionManager
	Engine     workflow.WorkflowEngine
	Dispatcher dispatcher.Dispatcher
	Storage    *StorageBundle
	Notifier   port.Notifier
	Logger     *zap.Logger
}

// ProvideServices creates the application services and subscribes the notifier.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	rates, err := deps.Config.RateTable()
	if err != nil {
		return nil, err
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	notifications := service.NewNotificationService(deps.Notifier, serviceLogger)
	notifications.Register(deps.Dispatcher)

	return &ServiceBundle{
		Reports: service.NewReportService(
			deps.Reports,
			deps.TxManager,
			deps.Engine,
			rates,
			serviceLogger,
			service.WithReportDispatcher(deps.Dispatcher),
			service.WithReceiptCleanup(deps.Storage.FileStorage),
		),
		Queries: service.NewQueryService(deps.Reports, serviceLogger),
		Receipts: service.NewReceiptService(
			deps.Reports,
			deps.Storage.FileStorage,
			deps.Storage.Inspector,
			service.ReceiptPolicy{
				MaxBytes:          deps.Config.Receipts.MaxBytes,
				AllowedExtensions: deps.Config.Receipts.AllowedExtensions,
			},
			deps.Dispatcher,
			serviceLogger,
		),
		Exports: service.NewExportService(
			deps.Reports,
			export.NewXLSXExporter(deps.Config.Export.FontFamily, deps.Logger),
			serviceLogger,
		),
		Notification: notifications,
	}, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"github.com/yashrajoria/catalog-seeder/checksum"
	"github.com/yashrajoria/catalog-seeder/config"
	"github.com/yashrajoria/catalog-seeder/database"
	"github.com/yashrajoria/catalog-seeder/history"
	"github.com/yashrajoria/catalog-seeder/kv"
	"github.com/yashrajoria/catalog-seeder/loader"
	"github.com/yashrajoria/catalog-seeder/logger"
	"github.com/yashrajoria/catalog-seeder/markers"
	"github.com/yashrajoria/catalog-seeder/models"
	"github.com/yashrajoria/catalog-seeder/notify"
	"github.com/yashrajoria/catalog-seeder/observers"
	pkgaws "github.com/yashrajoria/catalog-seeder/pkg/aws"
	pkgddb "github.com/yashrajoria/catalog-seeder/pkg/dynamodb"
	"github.com/yashrajoria/catalog-seeder/repository"
	"github.com/yashrajoria/catalog-seeder/services"
)

// App holds every wired component for one process.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	awsCfg *sdkaws.Config

	store        repository.DocumentStore
	kv           kv.Store
	locker       kv.Locker
	markers      *markers.Store
	importer     *services.ImportService
	orchestrator *services.Orchestrator
	settings     *services.SettingsService
	history      *history.GormRepository
	metrics      *pkgaws.MetricsClient

	closers []func() error
}

// appOption lets tests replace components before wiring completes.
type appOption func(*App)

func withStore(s repository.DocumentStore) appOption {
	return func(a *App) { a.store = s }
}

func withLogger(l *zap.Logger) appOption {
	return func(a *App) { a.logger = l }
}

// NewApp builds the component graph described by cfg. Run log lines go to out.
func NewApp(ctx context.Context, cfg *config.Config, out io.Writer, opts ...appOption) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	if cfg.NeedsAWS() {
		awsCfg, err := pkgaws.LoadAWSConfig(ctx, pkgaws.Options{
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.AWSEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}, logger.OrNop(a.logger))
		if err != nil {
			return nil, err
		}
		a.awsCfg = &awsCfg
	}

	if cfg.AWSUseSecrets && a.awsCfg != nil {
		cfg.ApplySecrets(ctx, pkgaws.NewSecretsClient(*a.awsCfg))
	}

	if a.logger == nil {
		if err := a.initLogger(ctx); err != nil {
			return nil, err
		}
	}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initKV(ctx); err != nil {
		return nil, err
	}
	source, err := a.newSource()
	if err != nil {
		return nil, err
	}

	a.markers = markers.New(a.kv, markers.DefaultValues)
	a.settings = services.NewSettingsService(a.markers, a.logger)

	var executor *services.BatchExecutor
	if a.store != nil {
		executor = services.NewBatchExecutor(a.store,
			services.WithExecutorLogger(a.logger),
			services.WithRetryPolicy(services.RetryPolicy{
				MaxAttempts:  cfg.RetryMaxAttempts,
				InitialDelay: cfg.RetryInitialDelay,
				JitterMax:    cfg.RetryJitterMax,
			}),
		)
	}
	a.importer = services.NewImportService(services.ImportServiceConfig{
		Store:             a.store,
		Source:            source,
		Checksums:         checksum.Factory(a.kv),
		Executor:          executor,
		ChunkSize:         cfg.ChunkSize,
		LookupConcurrency: cfg.LookupConcurrency,
		Logger:            a.logger,
	})

	runObservers, err := a.initObservers(ctx)
	if err != nil {
		return nil, err
	}

	orchOpts := []services.OrchestratorOption{
		services.WithOrchestratorLogger(a.logger),
		services.WithObservers(runObservers...),
		services.WithLocker(a.locker, services.DefaultLockKey, cfg.LockTTL),
	}
	if out != nil {
		orchOpts = append(orchOpts, services.WithSink(func(line string) {
			fmt.Fprintln(out, line)
		}))
	}
	a.orchestrator = services.NewOrchestrator(a.importer, a.markers, orchOpts...)

	ok = true
	return a, nil
}

func (a *App) initLogger(ctx context.Context) error {
	var sink io.Writer
	if a.cfg.CloudWatchLogsEnabled && a.awsCfg != nil {
		cw, err := pkgaws.NewCloudWatchLogsClient(ctx, *a.awsCfg, a.cfg.LogGroup, "catalog-seeder")
		if err != nil {
			fmt.Fprintf(os.Stderr, "CloudWatch Logs unavailable, logging to console only: %v\n", err)
		} else {
			sink = cw
		}
	}
	if err := logger.InitializeWithWriter(a.cfg.Env, sink); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger.Log
	a.closers = append(a.closers, func() error {
		_ = a.logger.Sync()
		return nil
	})
	return nil
}

func (a *App) initKV(ctx context.Context) error {
	switch a.cfg.KVBackend {
	case config.KVRedis:
		client, err := database.NewRedisClient(ctx, a.cfg.RedisURL, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.kv = kv.NewRedisStore(client, a.cfg.KVPrefix)
		a.locker = kv.NewRedisLocker(client, a.cfg.KVPrefix)
	case config.KVStore:
		// the lease stays in-process; cross-process exclusion needs redis
		a.locker = kv.NewMemoryLocker()
		if a.store == nil {
			a.kv = kv.NewMemoryStore()
			return nil
		}
		a.kv = kv.NewDocumentStore(a.store, a.cfg.StateCollection)
	default:
		a.kv = kv.NewMemoryStore()
		a.locker = kv.NewMemoryLocker()
	}
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	switch a.cfg.StoreBackend {
	case config.StoreDynamoDB:
		client := pkgddb.NewClientFromConfig(*a.awsCfg)
		if a.cfg.DDBCreateTables {
			collections := []string{models.SectionBrands, models.SectionCategories, models.SectionProducts}
			if a.cfg.KVBackend == config.KVStore {
				collections = append(collections, a.cfg.StateCollection)
			}
			for _, coll := range collections {
				table := a.cfg.DDBTablePrefix + coll
				created, err := pkgddb.EnsureTable(ctx, client, table)
				if err != nil {
					return err
				}
				if created {
					a.logger.Info("created dynamodb table", zap.String("table", table))
				}
			}
		}
		a.store = repository.NewDynamoStore(client, repository.WithTablePrefix(a.cfg.DDBTablePrefix))
	case config.StoreMongo:
		client, err := database.ConnectMongo(ctx, a.cfg.MongoURI, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return database.DisconnectMongo(client, a.logger) })
		a.store = repository.NewMongoStore(client, a.cfg.MongoDB, a.cfg.MongoTransactions)
	case config.StoreMemory:
		a.store = repository.NewMemoryStore()
	case config.StoreNone:
		a.logger.Warn("no remote store configured, seed runs will be skipped")
	}
	return nil
}

func (a *App) newSource() (loader.Source, error) {
	switch a.cfg.SeedSource {
	case config.SourceS3:
		if a.awsCfg == nil {
			return nil, fmt.Errorf("s3 seed source needs AWS configuration")
		}
		return loader.NewS3Source(pkgaws.NewS3Client(*a.awsCfg), a.cfg.SeedBucket, a.cfg.SeedPrefix), nil
	default:
		return loader.NewFSSource(os.DirFS(a.cfg.SeedDir), ""), nil
	}
}

func (a *App) initObservers(ctx context.Context) ([]services.Observer, error) {
	var out []services.Observer

	if a.cfg.HistoryEnabled {
		db, err := database.ConnectPostgres(database.PostgresConfig{
			Host:     a.cfg.PostgresHost,
			Port:     a.cfg.PostgresPort,
			User:     a.cfg.PostgresUser,
			Password: a.cfg.PostgresPassword,
			DBName:   a.cfg.PostgresDB,
			SSLMode:  a.cfg.PostgresSSLMode,
		}, a.logger, &models.RunRecord{})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return database.ClosePostgres(db) })
		a.history = history.NewGormRepository(db)
		out = append(out, a.history)
	}

	if a.cfg.MetricsEnabled && a.awsCfg != nil {
		a.metrics = pkgaws.NewMetricsClient(*a.awsCfg, a.cfg.MetricsNamespace, true)
		out = append(out, observers.NewMetricsObserver(a.metrics))
	}

	if a.cfg.SNSTopicARN != "" && a.awsCfg != nil {
		out = append(out, notify.NewSNSNotifier(pkgaws.NewSNSClient(*a.awsCfg), a.cfg.SNSTopicARN, a.logger))
	}

	if len(a.cfg.KafkaBrokers) > 0 {
		kn := notify.NewKafkaNotifier(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
		a.closers = append(a.closers, kn.Close)
		out = append(out, kn)
	}

	return out, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

package main

import (
	"context"
	"log"

	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/event"
	infra "github.com/pot-code/coursegate/internal/infrastructure"
	"github.com/pot-code/coursegate/internal/infrastructure/driver"
	"github.com/pot-code/coursegate/internal/infrastructure/logging"
	"github.com/pot-code/coursegate/internal/infrastructure/uuid"
	"github.com/pot-code/coursegate/internal/interfaces/rest"
	"github.com/pot-code/coursegate/internal/playback"
	"github.com/pot-code/coursegate/internal/progress"
	"github.com/pot-code/coursegate/internal/quiz"
	"github.com/pot-code/coursegate/internal/unlock"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	UUIDGenerator := uuid.NewNanoIDGenerator(option.Security.IDLength)

	var (
		Catalog     course.Repository
		Gateway     progress.Gateway
		retryConfig = progress.RetryConfig{
			CallTimeout:    option.Store.CallTimeout,
			MaxRetries:     option.Store.MaxRetries,
			InitialBackoff: option.Store.InitialBackoff,
			MaxBackoff:     option.Store.MaxBackoff,
		}
	)
	if option.Database.Driver == "memory" {
		catalog, err := course.LoadCatalogFile(option.Progress.CatalogFile)
		if err != nil {
			log.Fatalf("Failed to load course catalog: %s\n", err)
		}
		Catalog = catalog
		Gateway = progress.NewMemoryGateway(catalog, UUIDGenerator)
		logger.Info("Using in-memory progress store", zap.String("catalog.file", option.Progress.CatalogFile))
	} else {
		dbConn, err := driver.GetDBConnection(&driver.DBConfig{
			User:     option.Database.User,
			Password: option.Database.Password,
			MaxConn:  option.Database.MaxConn,
			Protocol: option.Database.Protocol,
			Driver:   option.Database.Driver,
			Host:     option.Database.Host,
			Port:     option.Database.Port,
			Query:    option.Database.Query,
			Schema:   option.Database.Schema,
		})
		if err != nil {
			log.Fatalf("Failed to create DB connection: %s\n", err)
		}
		defer dbConn.Close(context.Background())
		logger.Debug("Create database connection instance", zap.String("db.driver", option.Database.Driver),
			zap.String("db.schema", option.Database.Schema),
			zap.String("db.host", option.Database.Host),
		)
		Catalog = progress.CatalogWithRetry(course.NewSQLRepository(dbConn), retryConfig)
		Gateway = progress.NewSQLGateway(dbConn, UUIDGenerator)
	}
	Gateway = progress.WithRetry(Gateway, retryConfig)

	var (
		KV     driver.KeyValueDB
		PubSub driver.PubSub
	)
	if option.KVStore.Driver == "memory" {
		kv := driver.NewMemoryKV()
		KV, PubSub = kv, kv
	} else {
		rdb := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
		if err := rdb.Ping(); err != nil {
			log.Fatalf("Failed to connect to redis: %s\n", err)
		}
		defer rdb.Close()
		KV, PubSub = rdb, rdb
	}

	ctx, cancel := context.WithCancel(logging.SetLoggerInContext(context.Background(), logger))
	defer cancel()

	Hub := event.NewHub()
	var Publisher event.Publisher = Hub
	if option.KVStore.Channel != "" {
		bus := event.NewBus(PubSub, option.KVStore.Channel, Hub)
		if err := bus.StartForwarder(ctx); err != nil {
			log.Fatalf("Failed to subscribe to event channel: %s\n", err)
		}
		Publisher = bus
	}

	Engine := unlock.NewEngine(Gateway, Publisher, option.Progress.PointsAward)
	ProgressUseCase := unlock.NewUseCase(Catalog, Gateway)
	PlaybackUseCase := playback.NewUseCase(
		Catalog, Gateway, Engine,
		playback.NewSessionStore(KV, option.Progress.SessionTTL),
		playback.NewDetector(option.Progress.CompletionThreshold),
		Publisher,
		UUIDGenerator,
		retryConfig.Budget(),
	)
	QuizUseCase := quiz.NewUseCase(Catalog, Gateway, Publisher)

	rest.Serve(Gateway, KV, option, ProgressUseCase, PlaybackUseCase, QuizUseCase, Hub, logger)
}

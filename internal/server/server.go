// Package server wires the whole application together: config, logging,
// Mongo, object storage, the queue, the scheduler and both transport
// surfaces. Everything is constructed explicitly here and injected downward;
// nothing below this package reaches for globals.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/dukaan/app/controllers"
	"github.com/shashiranjanraj/dukaan/app/gql"
	"github.com/shashiranjanraj/dukaan/app/realtime"
	"github.com/shashiranjanraj/dukaan/app/repositories"
	"github.com/shashiranjanraj/dukaan/app/routes"
	"github.com/shashiranjanraj/dukaan/app/services"
	"github.com/shashiranjanraj/dukaan/config"
	"github.com/shashiranjanraj/dukaan/pkg/database"
	gqlhttp "github.com/shashiranjanraj/dukaan/pkg/graphql"
	grpcserver "github.com/shashiranjanraj/dukaan/pkg/grpc"
	"github.com/shashiranjanraj/dukaan/pkg/logger"
	"github.com/shashiranjanraj/dukaan/pkg/metrics"
	"github.com/shashiranjanraj/dukaan/pkg/middleware"
	"github.com/shashiranjanraj/dukaan/pkg/queue"
	"github.com/shashiranjanraj/dukaan/pkg/reqid"
	"github.com/shashiranjanraj/dukaan/pkg/router"
	"github.com/shashiranjanraj/dukaan/pkg/schedule"
	"github.com/shashiranjanraj/dukaan/pkg/storage"
	"github.com/shashiranjanraj/dukaan/pkg/workerpool"
)

// App holds everything the commands need after boot.
type App struct {
	DB         *database.Mongo
	Store      *storage.Manager
	Products   *repositories.ProductRepository
	Users      *repositories.UserRepository
	Categories *repositories.CategoryRepository
	Intents    *repositories.IntentRepository
	Photos     *services.PhotoGateway
	Reconciler *services.Reconciler
	Router     *router.Router
}

// Boot loads config and constructs the full dependency graph. It does not
// start any listener; Run does that.
func Boot(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("server: load config: %w", err)
	}

	db, err := database.Connect(ctx, config.MongoURI(), config.MongoDB())
	if err != nil {
		return nil, fmt.Errorf("server: connect mongo: %w", err)
	}

	// Fan request logs into Mongo as well when a collection is configured.
	if col := config.LogMongoCollection(); col != "" {
		sink := logger.NewMongoHandler(db.DB.Collection(col))
		logger.SetHandler(logger.NewMultiHandler(logger.L.Handler(), sink))
	}

	store, err := storage.New(storage.Config{
		Default:    config.StorageDefault(),
		LocalRoot:  config.StorageLocalRoot(),
		LocalURL:   config.StorageURL(),
		S3Bucket:   config.StorageS3Bucket(),
		S3Region:   config.StorageS3Region(),
		S3Key:      config.StorageS3Key(),
		S3Secret:   config.StorageS3Secret(),
		S3Endpoint: config.StorageS3Endpoint(),
		S3URL:      config.StorageS3URL(),
	})
	if err != nil {
		return nil, fmt.Errorf("server: storage: %w", err)
	}

	// Queue: Redis driver when configured, in-memory otherwise. Failed jobs
	// land in Mongo either way.
	if addr := config.RedisAddr(); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.RedisPassword(),
		})
		queue.SetDriver(queue.NewRedisDriver(rdb))
	}
	queue.UseMongo(db.DB.Collection("failed_jobs"))

	products := repositories.NewProductRepository(db.DB)
	users := repositories.NewUserRepository(db.DB)
	categories := repositories.NewCategoryRepository(db.DB)
	intents := repositories.NewIntentRepository(db.DB)

	photos := services.NewPhotoGateway(store)
	reconciler := services.NewReconciler(intents, store)
	services.RegisterCleanup(products, intents, photos)

	stock := realtime.NewStockFeed()
	pool := workerpool.New(8)

	productCtrl := controllers.NewProductController(
		products, intents, photos, pool, stock.Hub, config.UploadMaxBytes())
	authCtrl := controllers.NewAuthController(users)

	schema, err := gqlhttp.NewSchema(gql.RootQuery(products))
	if err != nil {
		return nil, fmt.Errorf("server: graphql schema: %w", err)
	}

	r := router.New()

	// Global middleware stack (outermost → innermost):
	//  1. Prometheus metrics — outermost for accurate total latency
	//  2. Recovery          — catches panics before they kill the goroutine
	//  3. Request ID        — inject unique ID before anything logs
	//  4. Logger            — logs request_id from context
	//  5. CORS              — set CORS headers
	//  6. Rate limiter      — reject abusers early
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(200, time.Minute))

	// Prometheus endpoint — no auth, no rate limit bypass needed here.
	r.Get("/metrics", "metrics", metrics.Handler())

	routes.RegisterAPI(r, routes.Deps{
		Products: productCtrl,
		Auth:     authCtrl,
		Stock:    stock,
		Schema:   schema,
	})

	return &App{
		DB:         db,
		Store:      store,
		Products:   products,
		Users:      users,
		Categories: categories,
		Intents:    intents,
		Photos:     photos,
		Reconciler: reconciler,
		Router:     r,
	}, nil
}

// Run boots the app and serves until SIGINT/SIGTERM, then shuts everything
// down gracefully.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := Boot(ctx)
	if err != nil {
		return err
	}
	defer app.DB.Close()

	queue.StartWorkers(ctx, 4)

	schedule.EveryMinute().
		WithoutOverlapping().
		Name("storage-sweep").
		Run(func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			app.Reconciler.Sweep(sweepCtx)
		})
	schedule.Start(ctx)

	// Internal gRPC endpoint: health (backed by a Mongo ping) + reflection.
	grpcSrv, _, err := grpcserver.Start(config.GRPCPort(), func(ctx context.Context) error {
		return app.DB.Client.Ping(ctx, nil)
	})
	if err != nil {
		return err
	}
	defer grpcserver.Stop(grpcSrv)

	httpSrv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           app.Router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", httpSrv.Addr, "env", config.AppEnv())
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

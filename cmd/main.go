package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/snackoverflow/snack-gateway/api"
	"github.com/snackoverflow/snack-gateway/apiclient"
	"github.com/snackoverflow/snack-gateway/githubclient"
	"github.com/snackoverflow/snack-gateway/session"
	"github.com/snackoverflow/snack-gateway/store"
	"github.com/snackoverflow/snack-gateway/types"
	"github.com/snackoverflow/snack-gateway/worker"
)

var (
	version      = "unknown"
	buildMachine = "unknown"
	buildTime    = "unknown"
	goVersion    = "unknown"
)

func main() {
	e := echo.New()

	configPath := os.Getenv("SNACK_GATEWAY_CONFIG")
	if configPath == "" {
		configPath = "/etc/snack-gateway/config.yaml"
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load config: ", slog.String("error", err.Error()))
		panic(err)
	}

	slog.Info(fmt.Sprintf("Snack Overflow Gateway %s starting...", version))
	slog.Info(fmt.Sprintf("Config loaded! Upstream: %s", config.Gateway.APIBase))

	e.HidePort = true
	e.HideBanner = true

	if config.Server.EnableTrace {
		cleanup, err := SetupTraceProvider(config.Server.TraceEndpoint, config.Gateway.FQDN+"/snackgw", version)
		if err != nil {
			panic(err)
		}
		defer cleanup()

		skipper := otelecho.WithSkipper(
			func(c echo.Context) bool {
				return c.Path() == "/metrics" || c.Path() == "/health"
			},
		)
		e.Use(otelecho.Middleware(config.Gateway.FQDN, skipper))
	}

	e.Use(echoprometheus.NewMiddleware("snackgw"))
	e.Use(middleware.Recover())

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(config.Server.Dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		panic("failed to connect database")
	}
	sqlDB, err := db.DB() // for pinging
	if err != nil {
		panic("failed to connect database")
	}
	defer sqlDB.Close()

	err = db.Use(tracing.NewPlugin(
		tracing.WithDBName("postgres"),
	))
	if err != nil {
		panic("failed to setup tracing plugin")
	}

	mc := memcache.New(config.Server.MemcachedAddr)
	defer mc.Close()

	log.Println("start migrate")
	db.AutoMigrate(
		&types.SyncState{},
		&types.EventReference{},
		&types.UserSettings{},
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Server.RedisAddr,
		Password: "", // no password set
		DB:       config.Server.RedisDB,
	})
	err = redisotel.InstrumentTracing(
		rdb,
		redisotel.WithAttributes(
			attribute.KeyValue{
				Key:   "db.name",
				Value: attribute.StringValue("redis"),
			},
		),
	)
	if err != nil {
		panic("failed to setup tracing plugin")
	}

	storeService := store.NewStore(db)

	var deliveryKey any
	if config.Gateway.DeliveryPriv != "" {
		deliveryKey, err = store.LoadKey(config.Gateway.DeliveryPriv)
		if err != nil {
			slog.Error("Failed to load delivery key: ", slog.String("error", err.Error()))
			panic(err)
		}
	}

	client, err := apiclient.NewClient(mc, config.Gateway, deliveryKey)
	if err != nil {
		panic(err)
	}

	kv := session.NewRedisKV(rdb)
	sessionManager := session.NewManager(kv)

	github := githubclient.NewClient(nil)

	poller := worker.NewWorker(kv, storeService, github, client, config.Gateway)
	sessionManager.Subscribe(poller)

	// a session that survived a restart resumes polling
	if user, ok := sessionManager.Current(context.Background()); ok {
		poller.OnLogin(context.Background(), user)
	}

	apiService := api.NewService(storeService, client, sessionManager, config.Gateway)
	apiHandler := api.NewHandler(apiService)

	g := e.Group("/api")
	g.POST("/login", apiHandler.Login)
	g.POST("/logout", apiHandler.Logout)
	g.POST("/register", apiHandler.Register)

	g.GET("/profile/:id", apiHandler.GetProfile)
	g.GET("/explore", apiHandler.Explore)
	g.GET("/lookup", apiHandler.Lookup)
	g.GET("/notifications", apiHandler.Notifications)

	g.POST("/follow/:id", apiHandler.Follow)
	g.DELETE("/follow/:id", apiHandler.Unfollow)
	g.PUT("/followers/:id", apiHandler.AcceptFollower)
	g.DELETE("/followrequests/:id", apiHandler.DeclineFollower)

	g.POST("/posts", apiHandler.CreatePost)
	g.PUT("/posts/:postID", apiHandler.UpdatePost)
	g.DELETE("/posts/:postID", apiHandler.DeletePost)

	g.GET("/authors/:id/posts/:postID/likes", apiHandler.GetLikes)
	g.POST("/authors/:id/posts/:postID/likes", apiHandler.LikePost)
	g.POST("/authors/:id/posts/:postID/comments", apiHandler.CommentPost)
	g.POST("/authors/:id/posts/:postID/share", apiHandler.SharePost)

	g.GET("/settings", apiHandler.GetUserSettings)
	g.POST("/settings", apiHandler.UpdateUserSettings)

	e.GET("/health", func(c echo.Context) (err error) {
		ctx := c.Request().Context()

		err = sqlDB.Ping()
		if err != nil {
			return c.String(http.StatusInternalServerError, "db error")
		}

		err = rdb.Ping(ctx).Err()
		if err != nil {
			return c.String(http.StatusInternalServerError, "redis error")
		}

		return c.String(http.StatusOK, "ok")
	})

	e.GET("/metrics", echoprometheus.NewHandler())

	port := ":8000"
	envport := os.Getenv("SNACK_GATEWAY_PORT")
	if envport != "" {
		port = ":" + envport
	}

	e.Logger.Fatal(e.Start(port))
}

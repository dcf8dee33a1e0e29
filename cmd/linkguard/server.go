package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkguard/linkguard/automod/cachestore"
	"github.com/linkguard/linkguard/automod/countstore"
	"github.com/linkguard/linkguard/automod/engine"
	"github.com/linkguard/linkguard/automod/flagstore"
	"github.com/linkguard/linkguard/automod/moderation"
	"github.com/linkguard/linkguard/automod/modstore"
	"github.com/linkguard/linkguard/automod/reasoning"
	"github.com/linkguard/linkguard/automod/signals"
	"github.com/linkguard/linkguard/automod/threat"
	"github.com/linkguard/linkguard/automod/websearch"
	"github.com/linkguard/linkguard/util"
	"github.com/linkguard/linkguard/util/cliutil"
	"github.com/linkguard/linkguard/util/ssrf"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"gorm.io/plugin/opentelemetry/tracing"
)

type Server struct {
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger
	engine *engine.Engine
	rdb    *redis.Client
}

type Config struct {
	Logger *slog.Logger
	Policy *PolicyConfig
	// optional extra sets file (JSON or YAML), loaded over the policy's lists
	SetsFile string

	// empty means records are kept in redis (if configured) or in memory
	DatabaseURL      string
	MaxDBConnections int
	DBTracing        bool
	RedisURL         string
	// if set (and redis isn't), checker results are cached in memcached
	MemcachedServers []string

	SlackWebhookURL string

	// one of "openai", "anthropic", "ollama", or empty to disable the AI content checker
	AIProvider  string
	AIAPIKey    string
	AIModel     string
	AIHost      string
	AIRateLimit int

	SerpAPIKey      string
	SearchRateLimit int

	RDAPHost   string
	Nameserver string

	// skip checkers which make network requests about the link itself (TLS, DNSBL, RDAP, shortener resolution)
	OfflineCheckers bool

	Bind string
}

// Backing stores for the engine, selected from the config
type stores struct {
	mod      moderation.Store
	history  moderation.HistoryStore
	counters countstore.CountStore
	cache    cachestore.CacheStore
	flags    flagstore.FlagStore
	rdb      *redis.Client
}

func openStores(ctx context.Context, config Config) (*stores, error) {
	st := &stores{}

	if config.RedisURL != "" {
		// generic client, for health checks
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		st.rdb = redis.NewClient(opt)
		_, err = st.rdb.Ping(ctx).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		st.counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, 24*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		st.cache = csh

		flg, err := flagstore.NewRedisFlagStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis flagstore: %v", err)
		}
		st.flags = flg
	} else {
		st.counters = countstore.NewMemCountStore()
		st.flags = flagstore.NewMemFlagStore()
		if len(config.MemcachedServers) > 0 {
			mc, err := cachestore.NewMemcachedCacheStore(config.MemcachedServers, 24*time.Hour)
			if err != nil {
				return nil, fmt.Errorf("initializing memcached cachestore: %v", err)
			}
			st.cache = mc
		} else {
			st.cache = cachestore.NewMemCacheStore(50_000, 24*time.Hour)
		}
	}

	switch {
	case config.DatabaseURL != "":
		db, err := cliutil.SetupDatabase(config.DatabaseURL, config.MaxDBConnections)
		if err != nil {
			return nil, err
		}
		if config.DBTracing {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return nil, err
			}
		}
		gs := modstore.NewGormStore(db)
		if err := gs.Migrate(); err != nil {
			return nil, fmt.Errorf("migrating moderation database: %w", err)
		}
		st.mod = gs
		st.history = gs
	case config.RedisURL != "":
		rs, err := modstore.NewRedisStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis moderation store: %v", err)
		}
		st.mod = rs
		st.history = rs
	default:
		ms := modstore.NewMemStore()
		st.mod = ms
		st.history = ms
	}
	return st, nil
}

func newAnalyzer(config Config) (reasoning.Analyzer, error) {
	client := util.RobustHTTPClient()
	limiter := reasoning.NewLimiter(config.AIRateLimit)
	switch config.AIProvider {
	case "":
		return nil, nil
	case "openai":
		c := reasoning.NewOpenAIClient(client, config.AIAPIKey, config.AIModel)
		if config.AIHost != "" {
			c.Host = config.AIHost
		}
		c.Limiter = limiter
		return c, nil
	case "anthropic":
		c := reasoning.NewAnthropicClient(client, config.AIAPIKey, config.AIModel)
		if config.AIHost != "" {
			c.Host = config.AIHost
		}
		c.Limiter = limiter
		return c, nil
	case "ollama", "local":
		c := reasoning.NewOllamaClient(client, config.AIHost, config.AIModel)
		c.Limiter = limiter
		return c, nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", config.AIProvider)
	}
}

// Wires the signal checkers, stores and moderation policy in to an engine.
func NewEngine(ctx context.Context, config Config) (*engine.Engine, *stores, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pc := config.Policy
	if pc == nil {
		def := DefaultPolicyConfig()
		pc = &def
	}

	sets, err := pc.SetStore()
	if err != nil {
		return nil, nil, err
	}
	if config.SetsFile != "" {
		if err := sets.LoadFromFile(config.SetsFile); err != nil {
			return nil, nil, fmt.Errorf("initializing in-process setstore: %v", err)
		}
		logger.Info("loaded set config from file", "path", config.SetsFile)
	}

	st, err := openStores(ctx, config)
	if err != nil {
		return nil, nil, err
	}

	cached := func(c signals.Checker) signals.Checker {
		return signals.WithCache(c, st.cache, pc.CacheTTL[c.Kind()], logger)
	}

	rep := &signals.ReputationChecker{Sets: sets, Flags: st.flags, Logger: logger}
	checkers := []signals.Checker{
		rep,
		&signals.HomographChecker{Sets: sets},
	}

	if !config.OfflineCheckers {
		if len(pc.DNSBLZones) > 0 {
			dnsbl, err := signals.NewDNSBLClient(pc.DNSBLZones, config.Nameserver)
			if err != nil {
				logger.Warn("DNS blocklists disabled", "err", err)
			} else {
				rep.DNSBL = dnsbl
			}
		}
		tlsc := &signals.TLSChecker{
			DialContext: ssrf.PublicOnlyDialer(5*time.Second, "443").DialContext,
		}
		age := &signals.DomainAgeChecker{
			Client: util.RetryingHTTPClient(1, 10*time.Second),
			Host:   config.RDAPHost,
			Window: pc.DomainAgeWindow,
		}
		short := &signals.ShortenerChecker{
			Sets:         sets,
			Client:       util.PublicHTTPClient(5 * time.Second),
			MaxRedirects: pc.MaxRedirects,
			HostCheckers: []signals.HostChecker{rep, age, tlsc},
		}
		checkers = append(checkers, cached(tlsc), cached(age), cached(short))
	}

	analyzer, err := newAnalyzer(config)
	if err != nil {
		return nil, nil, err
	}
	if analyzer != nil {
		logger.Info("configuring AI content checker", "provider", config.AIProvider)
		ai := &signals.AIContentChecker{Analyzer: analyzer}
		if !config.OfflineCheckers {
			ai.Client = util.PublicHTTPClient(5 * time.Second)
		}
		checkers = append(checkers, cached(ai))
	}

	if config.SerpAPIKey != "" {
		logger.Info("configuring web reputation checker")
		search := websearch.NewSerpAPIClient(util.RobustHTTPClient(), config.SerpAPIKey)
		search.Limiter = reasoning.NewLimiter(config.SearchRateLimit)
		checkers = append(checkers, cached(&signals.WebReputationChecker{Searcher: search}))
	}

	agg, err := threat.NewAggregator(pc.Thresholds)
	if err != nil {
		return nil, nil, err
	}
	agg.MinQuorum = pc.MinQuorum

	notices, err := engine.NewNotices(pc.Notices, pc.Moderation.MuteThreshold)
	if err != nil {
		return nil, nil, err
	}

	eng := &engine.Engine{
		Logger:         logger,
		Collector:      signals.NewCollector(logger, pc.Checkers, checkers...),
		Aggregator:     agg,
		Moderator:      moderation.NewModerator(st.mod, pc.Moderation, logger),
		History:        st.history,
		Counters:       st.counters,
		Sets:           sets,
		Flags:          st.flags,
		Cache:          st.cache,
		Notices:        notices,
		MaxLinks:       pc.MaxLinks,
		LearnThreshold: pc.LearnThreshold,
		OutcomeTTL:     pc.OutcomeTTL,
	}
	if config.SlackWebhookURL != "" {
		eng.Notifier = &engine.SlackNotifier{
			SlackWebhookURL: config.SlackWebhookURL,
			Client:          util.RobustHTTPClient(),
		}
	}
	return eng, st, nil
}

func NewServer(ctx context.Context, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eng, st, err := NewEngine(ctx, config)
	if err != nil {
		return nil, err
	}

	srv := newServer(eng, logger)
	// registers with the default prometheus registry, so only once per process
	srv.echo.Use(echoprometheus.NewMiddleware("linkguard"))
	srv.rdb = st.rdb
	srv.httpd = &http.Server{
		Handler:           srv,
		Addr:              config.Bind,
		WriteTimeout:      60 * time.Second,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       5 * time.Minute,
	}
	return srv, nil
}

// Sets up middleware and routes around an existing engine
func newServer(eng *engine.Engine, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(otelecho.Middleware("linkguard"))

	srv := &Server{
		echo:   e,
		logger: logger,
		engine: eng,
	}
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.HandleHealthCheck)
	e.POST("/v1/messages", srv.HandleMessage)
	e.GET("/v1/users/:userID", srv.HandleUserRecord)
	e.POST("/v1/users/:userID/unmute", srv.HandleUnmute)
	e.GET("/v1/users/:userID/history", srv.HandleUserHistory)
	e.GET("/v1/domains/:domain", srv.HandleDomainReport)
	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	srv.logger.Info("registering OS exit signal handler")
	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)

		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}
		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.httpd.Shutdown(ctx)
	if srv.rdb != nil {
		if cerr := srv.rdb.Close(); cerr != nil {
			srv.logger.Warn("closing redis client", "err", cerr)
		}
	}
	return err
}

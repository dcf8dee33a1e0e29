package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "linkguard",
		Usage:   "link threat analysis and moderation service",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"LINKGUARD_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: 'text' or 'json'",
			EnvVars: []string{"LINKGUARD_LOG_FMT", "LOG_FORMAT"},
		},
		&cli.StringFlag{
			Name:    "policy-file",
			Usage:   "YAML file with moderation policy, thresholds, checker settings, and domain lists",
			EnvVars: []string{"LINKGUARD_POLICY_FILE"},
		},
		&cli.StringFlag{
			Name:    "sets-file",
			Usage:   "extra domain lists (JSON or YAML), loaded over the policy file",
			EnvVars: []string{"LINKGUARD_SETS_FILE"},
		},
		&cli.StringFlag{
			Name:    "ai-provider",
			Usage:   "AI reasoning provider for page content analysis: openai, anthropic, ollama (empty to disable)",
			EnvVars: []string{"LINKGUARD_AI_PROVIDER", "AI_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "ai-api-key",
			Usage:   "API key for the AI reasoning provider",
			EnvVars: []string{"LINKGUARD_AI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "ai-model",
			Usage:   "model name for the AI reasoning provider (empty for provider default)",
			EnvVars: []string{"LINKGUARD_AI_MODEL", "LOCAL_MODEL"},
		},
		&cli.StringFlag{
			Name:    "ai-host",
			Usage:   "override base URL for the AI reasoning provider",
			EnvVars: []string{"LINKGUARD_AI_HOST"},
		},
		&cli.IntFlag{
			Name:    "ai-rate-limit",
			Usage:   "max AI reasoning requests per minute (0 for unlimited)",
			Value:   60,
			EnvVars: []string{"LINKGUARD_AI_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "serpapi-key",
			Usage:   "SerpAPI key, for web reputation search (empty to disable)",
			EnvVars: []string{"LINKGUARD_SERPAPI_KEY", "SEARCH_API_KEY"},
		},
		&cli.IntFlag{
			Name:    "search-rate-limit",
			Usage:   "max web search requests per minute (0 for unlimited)",
			Value:   30,
			EnvVars: []string{"LINKGUARD_SEARCH_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "rdap-host",
			Usage:   "RDAP server or bootstrap redirector, for domain registration dates",
			EnvVars: []string{"LINKGUARD_RDAP_HOST"},
		},
		&cli.StringFlag{
			Name:    "nameserver",
			Usage:   "DNS server (host:port) for blocklist lookups; defaults to the system resolver",
			EnvVars: []string{"LINKGUARD_NAMESERVER"},
		},
		&cli.BoolFlag{
			Name:    "offline-checkers",
			Usage:   "skip checkers which contact the linked host or registries (TLS, DNSBL, RDAP, redirects)",
			EnvVars: []string{"LINKGUARD_OFFLINE_CHECKERS"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		analyzeCmd,
		policyCmd,
	}

	return app.Run(args)
}

func configLogging(cctx *cli.Context) (*slog.Logger, error) {
	return cliutil.SetupSlog(cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	})
}

// Config fields shared by all commands
func configFromFlags(cctx *cli.Context, logger *slog.Logger) (Config, error) {
	pc, err := LoadPolicyConfig(cctx.String("policy-file"))
	if err != nil {
		return Config{}, err
	}
	return Config{
		Logger:          logger,
		Policy:          pc,
		SetsFile:        cctx.String("sets-file"),
		AIProvider:      strings.ToLower(cctx.String("ai-provider")),
		AIAPIKey:        cctx.String("ai-api-key"),
		AIModel:         cctx.String("ai-model"),
		AIHost:          cctx.String("ai-host"),
		AIRateLimit:     cctx.Int("ai-rate-limit"),
		SerpAPIKey:      cctx.String("serpapi-key"),
		SearchRateLimit: cctx.Int("search-rate-limit"),
		RDAPHost:        cctx.String("rdap-host"),
		Nameserver:      cctx.String("nameserver"),
		OfflineCheckers: cctx.Bool("offline-checkers"),
	}, nil
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database for moderation records and link history (sqlite:// or postgres://); empty to use redis or memory",
			Value:   "sqlite://data/linkguard/linkguard.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "add OpenTelemetry spans for database queries",
			EnvVars: []string{"LINKGUARD_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL, for shared counters, flags and cache",
			EnvVars: []string{"LINKGUARD_REDIS_URL"},
		},
		&cli.StringSliceFlag{
			Name:    "memcached-servers",
			Usage:   "memcached servers (host:port) for the checker result cache, when redis is not configured",
			EnvVars: []string{"LINKGUARD_MEMCACHED_SERVERS"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook, for admin notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3999",
			EnvVars: []string{"LINKGUARD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"LINKGUARD_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger, err := configLogging(cctx)
		if err != nil {
			return err
		}

		shutdownOTEL, err := configOTEL("linkguard")
		if err != nil {
			return err
		}
		defer shutdownOTEL()

		config, err := configFromFlags(cctx, logger)
		if err != nil {
			return err
		}
		config.DatabaseURL = cctx.String("database-url")
		config.MaxDBConnections = cctx.Int("max-db-connections")
		config.DBTracing = cctx.Bool("db-tracing")
		config.RedisURL = cctx.String("redis-url")
		config.MemcachedServers = cctx.StringSlice("memcached-servers")
		config.SlackWebhookURL = cctx.String("slack-webhook-url")
		config.Bind = cctx.String("bind")

		srv, err := NewServer(ctx, config)
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		return srv.RunAPI()
	},
}

var analyzeCmd = &cli.Command{
	Name:      "analyze",
	Usage:     "run all signal checkers against URLs, and print assessments (no moderation is applied)",
	ArgsUsage: "<url>...",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "overall time limit per URL",
			Value: 30 * time.Second,
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		if cctx.Args().Len() < 1 {
			return fmt.Errorf("expected at least one URL argument")
		}
		logger, err := configLogging(cctx)
		if err != nil {
			return err
		}
		config, err := configFromFlags(cctx, logger)
		if err != nil {
			return err
		}
		// in-memory stores only; nothing is persisted
		eng, _, err := NewEngine(ctx, config)
		if err != nil {
			return err
		}

		for _, raw := range cctx.Args().Slice() {
			le, err := event.LinkEventForURL(raw, time.Now())
			if err != nil {
				return fmt.Errorf("%s: %w", raw, err)
			}
			le.EventID = uuid.NewString()
			le.UserID = "cli"

			actx, cancel := context.WithTimeout(ctx, cctx.Duration("timeout"))
			a := eng.AnalyzeLink(actx, le)
			cancel()

			b, err := json.MarshalIndent(a, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
		}
		return nil
	},
}

var policyCmd = &cli.Command{
	Name:  "policy",
	Usage: "validate the policy file, and print the effective policy as YAML",
	Action: func(cctx *cli.Context) error {
		pc, err := LoadPolicyConfig(cctx.String("policy-file"))
		if err != nil {
			return err
		}
		out, err := pc.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

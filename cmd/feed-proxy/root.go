package main

import (
	"fmt"

	"github.com/Sternrassler/feedcache/internal/config"
	"github.com/Sternrassler/feedcache/pkg/assets"
	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/logging"
	"github.com/Sternrassler/feedcache/pkg/pagination"
	"github.com/Sternrassler/feedcache/pkg/wordpress"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app holds the components shared by the subcommands.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        config.Config
	logger     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:           "feed-proxy",
		Short:         "Cached, paginated access to a WordPress feed",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			logCfg := cfg.LoggingConfig()
			logCfg.Output = cmd.ErrOrStderr()
			a.logger = logging.Setup(logCfg)
			return nil
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (yaml, json or toml)")
	flags.String("base-url", "", "WordPress REST root, e.g. https://example.com/wp-json/wp/v2")
	flags.String("user-agent", "", "User-Agent sent to the feed")
	flags.Int("page-size", 0, "items per page")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "human-readable console logs")

	for key, flag := range map[string]string{
		"base_url":   "base-url",
		"user_agent": "user-agent",
		"page_size":  "page-size",
		"log_level":  "log-level",
		"log_pretty": "log-pretty",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	rootCmd.AddCommand(newServeCmd(a), newBrowseCmd(a))
	return rootCmd
}

// components are the wired library objects behind both subcommands.
type components struct {
	cache      *cache.Manager
	gateway    *wordpress.Client
	controller *pagination.Controller
	loader     *assets.Loader
}

func (a *app) build() (*components, error) {
	cacheCfg := a.cfg.CacheConfig()
	cacheCfg.Logger = logging.NewLoggerPtr("cache")
	cacheManager, err := cache.NewManager(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	gateway, err := wordpress.New(a.cfg.GatewayConfig())
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	ctrlCfg := a.cfg.PaginationConfig()
	ctrlCfg.Logger = logging.NewLoggerPtr("pagination")
	controller, err := pagination.NewController(gateway, cacheManager, ctrlCfg)
	if err != nil {
		return nil, fmt.Errorf("create controller: %w", err)
	}

	loader, err := assets.NewLoader(gateway, cacheManager)
	if err != nil {
		return nil, fmt.Errorf("create asset loader: %w", err)
	}

	return &components{
		cache:      cacheManager,
		gateway:    gateway,
		controller: controller,
		loader:     loader,
	}, nil
}

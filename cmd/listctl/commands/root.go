package commands

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/goliatone/go-entitylist/invalidation"
	"github.com/goliatone/go-entitylist/pkg/di"
	"github.com/goliatone/go-entitylist/store"
	"github.com/goliatone/go-entitylist/store/mongostore"
)

// StoreOpener connects to the document store. The returned func releases it.
type StoreOpener func(ctx context.Context, cfg Config, logger *zap.Logger) (store.Store, func(context.Context) error, error)

// WriterOpener returns the Kafka writer used to publish invalidations.
type WriterOpener func(cfg Config) (invalidation.Writer, error)

// ReaderOpener returns the Kafka reader used to consume invalidations.
type ReaderOpener func(cfg Config) (invalidation.Reader, error)

type app struct {
	v          *viper.Viper
	configPath string
	logLevel   string

	openStore  StoreOpener
	openWriter WriterOpener
	openReader ReaderOpener

	cfg    Config
	logger *zap.Logger
}

// NewRootCmd creates the root command backed by MongoDB and Kafka.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{
		v:          viper.New(),
		openStore:  openMongo,
		openWriter: openKafkaWriter,
		openReader: openKafkaReader,
	})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "listctl",
		Short:         "Browse, search and invalidate entity lists",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level, overrides the config file")

	rootCmd.AddCommand(
		newBrowseCommand(a),
		newSearchCommand(a),
		newInvalidateCommand(a),
		newWatchCommand(a),
	)

	return rootCmd
}

func (a *app) init() error {
	if a.logLevel != "" {
		a.v.Set("log_level", a.logLevel)
	}
	cfg, err := LoadConfig(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger == nil {
		logger, err := NewLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		a.logger = logger
	}
	return nil
}

// container opens the store and a container sized by the config.
func (a *app) container(ctx context.Context) (*di.Container, store.Store, func(), error) {
	st, release, err := a.openStore(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := di.NewContainer(a.cfg.cacheConfig(), di.WithLogger(a.logger))
	if err != nil {
		_ = release(ctx)
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = c.Close()
		if err := release(context.Background()); err != nil {
			a.logger.Warn("release store", zap.Error(err))
		}
	}
	return c, st, cleanup, nil
}

func openMongo(ctx context.Context, cfg Config, logger *zap.Logger) (store.Store, func(context.Context) error, error) {
	if err := cfg.Mongo.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "mongo config")
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect mongo")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, errors.Wrap(err, "ping mongo")
	}

	opts := []mongostore.Option{mongostore.WithLogger(logger)}
	if cfg.ObjectIDs {
		opts = append(opts, mongostore.WithObjectIDs())
	}
	return mongostore.New(client.Database(cfg.Mongo.Database), opts...), client.Disconnect, nil
}

func openKafkaWriter(cfg Config) (invalidation.Writer, error) {
	w, err := invalidation.NewWriter(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func openKafkaReader(cfg Config) (invalidation.Reader, error) {
	r, err := invalidation.NewReader(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	return r, nil
}

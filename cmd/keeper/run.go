package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/argus-labs/epoch-keeper/internal/config"
	"github.com/argus-labs/epoch-keeper/internal/journal"
	"github.com/argus-labs/epoch-keeper/internal/keeper"
	"github.com/argus-labs/epoch-keeper/internal/ledger"
	"github.com/argus-labs/epoch-keeper/internal/server"
	"github.com/argus-labs/epoch-keeper/internal/statsd"
	"github.com/argus-labs/epoch-keeper/internal/telemetry"
	"github.com/argus-labs/epoch-keeper/internal/telemetry/sentry"
)

const (
	serviceName      = "keeper"
	redisDialTimeout = 5 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the keeper until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runE,
	}
	cmd.Flags().String(flagMode, "", "task mode: shared or fetch (overrides KEEPER_MODE)")
	return cmd
}

func runE(cmd *cobra.Command, _ []string) error {
	envFile, err := cmd.Flags().GetString(flagEnvFile)
	if err != nil {
		return eris.Wrap(err, "failed to read env-file flag")
	}
	mode, err := cmd.Flags().GetString(flagMode)
	if err != nil {
		return eris.Wrap(err, "failed to read mode flag")
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if mode != "" {
		cfg.Mode = mode
	}
	opts, err := cfg.Options()
	if err != nil {
		return eris.Wrap(err, "invalid config")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, opts)
}

func run(ctx context.Context, opts config.Options) error {
	tel, err := telemetry.New(telemetry.Options{
		ServiceName: serviceName,
		SentryOptions: sentry.Options{
			Tags: map[string]string{"program": opts.Program.String()},
		},
	})
	if err != nil {
		return eris.Wrap(err, "failed to initialize telemetry")
	}
	defer shutdownTelemetry(&tel)
	defer tel.RecoverAndFlush(true)

	logger := tel.GetLogger("main")
	err = runKeeper(ctx, &tel, opts)
	if err != nil {
		tel.CaptureException(ctx, err)
		logger.Error().Msg(eris.ToString(err, true))
	}
	return err
}

func runKeeper(ctx context.Context, tel *telemetry.Telemetry, opts config.Options) error {
	logger := tel.GetLogger("main")

	if opts.StatsdAddress != "" {
		if err := statsd.Init(opts.StatsdAddress, []string{"program:" + opts.Program.String()}); err != nil {
			return eris.Wrap(err, "failed to initialize statsd")
		}
		defer func() {
			if err := statsd.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close statsd client")
			}
		}()
	}

	signer, err := config.LoadSigner(opts.KeypairPath)
	if err != nil {
		return err
	}

	client, err := ledger.NewRPCClient(opts.RPCURL,
		ledger.WithLogger(tel.GetLogger("ledger")),
		ledger.WithConfirmTimeout(opts.ConfirmTimeout),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create ledger client")
	}
	submitter, err := ledger.NewSubmitter(client, signer, opts.Retry, tel.GetLogger("submitter"))
	if err != nil {
		return eris.Wrap(err, "failed to create submitter")
	}

	store, closeStore, err := newJournal(ctx, opts)
	if err != nil {
		return err
	}
	defer closeStore()

	k, err := keeper.New(client, submitter, store, keeper.Options{
		Program:     opts.Program,
		OracleQueue: opts.OracleQueue,
		Interval:    opts.Interval,
		Mode:        opts.Mode,
	},
		keeper.WithLogger(tel.GetLogger("watcher")),
		keeper.WithTracer(tel.Tracer),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create keeper")
	}

	logger.Info().
		Str("program", opts.Program.String()).
		Str("authority", submitter.Authority().String()).
		Str("rpc", opts.RPCURL).
		Dur("interval", opts.Interval).
		Bool("oracle_queue", !opts.OracleQueue.IsZero()).
		Msg("starting keeper")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		// The status server has nothing to report once the keeper is gone.
		defer cancel()
		return k.Run(ctx)
	})
	if opts.StatusPort != "" {
		srv, err := server.New(k, store, opts.StatusPort, tel.GetLogger("server"))
		if err != nil {
			return eris.Wrap(err, "failed to create status server")
		}
		eg.Go(func() error {
			return srv.Serve(ctx)
		})
	}
	return eg.Wait()
}

// newJournal returns a redis backed journal when redis is configured, and an in-memory one
// otherwise.
func newJournal(ctx context.Context, opts config.Options) (journal.Store, func(), error) {
	if opts.RedisAddress == "" {
		return journal.NewMemoryStore(journal.DefaultCapacity), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.RedisAddress,
		Password:    opts.RedisPassword,
		DB:          0, // use default DB
		DialTimeout: redisDialTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, eris.Wrapf(err, "failed to connect to redis at %s", opts.RedisAddress)
	}
	store := journal.NewRedisStore(rdb, opts.Program.String(), journal.DefaultCapacity)
	return store, func() { _ = store.Close() }, nil
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		tel.Logger.Error().Err(err).Msg("telemetry shutdown error")
	}
}

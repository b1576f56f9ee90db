package cmd

import (
	"context"

	"github.com/foomo/keel"
	"github.com/foomo/keel/healthz"
	keelhttp "github.com/foomo/keel/net/http"
	"github.com/foomo/keel/net/http/middleware"
	"github.com/foomo/keel/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pairbridge/pairbridge/pkg/handler"
	"github.com/pairbridge/pairbridge/pkg/keystore"
	"github.com/pairbridge/pairbridge/pkg/push"
	"github.com/pairbridge/pairbridge/pkg/relay"
)

func NewHTTPCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Start http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			svr := keel.NewServer(
				keel.WithHTTPPrometheusService(servicePrometheusEnabledFlag(v)),
				keel.WithHTTPHealthzService(serviceHealthzEnabledFlag(v)),
				keel.WithPrometheusMeter(servicePrometheusEnabledFlag(v)),
				keel.WithGracefulPeriod(gracefulPeriodFlag(v)),
			)

			l := svr.Logger()

			connector := createConnector(v, l)
			store := keystore.NewRedisStore(l.Named("inst.keystore"), connector)

			sessions := relay.NewSessions(l.Named("inst.sessions"), store,
				relay.SessionsWithTTL(sessionTTLFlag(v)),
			)
			bindings := relay.NewPushBindings(l.Named("inst.bindings"), store,
				relay.PushBindingsWithTTL(pushBindingTTLFlag(v)),
			)
			calls := relay.NewCalls(l.Named("inst.calls"), store,
				relay.CallsWithTTL(callTTLFlag(v)),
				relay.CallsWithStatusTTL(callStatusTTLFlag(v)),
			)

			dispatcher := push.NewDispatcher(l.Named("inst.push"),
				push.DispatcherWithHTTPClient(
					keelhttp.NewHTTPClient(
						keelhttp.HTTPClientWithTimeout(pushTimeoutFlag(v)),
						keelhttp.HTTPClientWithTelemetry(),
					),
				),
				push.DispatcherWithEndpoint(pushEndpointFlag(v)),
				push.DispatcherWithAPIKey(pushAPIKeyFlag(v)),
				push.DispatcherWithMaxAttempts(pushMaxAttemptsFlag(v)),
				push.DispatcherWithMaxBackoff(pushMaxBackoffFlag(v)),
			)

			storeHealthzerFn := healthz.NewHealthzerFn(func(ctx context.Context) error {
				_, err := connector.Resolve(ctx)
				return err
			})
			svr.AddStartupHealthzers(storeHealthzerFn)
			svr.AddReadinessHealthzers(storeHealthzerFn)

			svr.AddClosers(func(ctx context.Context) error {
				return store.Close()
			})

			svr.AddServices(
				service.NewHTTP(l.Named("svc.http"), "http", addressFlag(v),
					handler.NewHTTP(l.Named("inst.handler"), sessions, bindings, calls, dispatcher,
						handler.WithBasePath(basePathFlag(v)),
					),
					middleware.Telemetry(),
					middleware.Logger(),
					middleware.Recover(),
				),
			)

			svr.Run()
			return nil
		},
	}

	flags := cmd.Flags()
	addAddressFlag(flags, v)
	addBasePathFlag(flags, v)
	addStoreAddrFlag(flags, v)
	addStoreDBFlag(flags, v)
	addSentinelAddrsFlag(flags, v)
	addSentinelMasterFlag(flags, v)
	addStoreResolveAttemptsFlag(flags, v)
	addSessionTTLFlag(flags, v)
	addPushBindingTTLFlag(flags, v)
	addCallTTLFlag(flags, v)
	addCallStatusTTLFlag(flags, v)
	addPushEndpointFlag(flags, v)
	addPushAPIKeyFlag(flags, v)
	addPushMaxAttemptsFlag(flags, v)
	addPushMaxBackoffFlag(flags, v)
	addPushTimeoutFlag(flags, v)
	addGracefulPeriodFlag(flags, v)
	addServiceHealthzEnabledFlag(flags, v)
	addServicePrometheusEnabledFlag(flags, v)

	return cmd
}

// createConnector picks the store topology from configuration: a fixed node,
// or sentinel monitors that are asked for the current primary on every
// operation.
func createConnector(v *viper.Viper, l *zap.Logger) keystore.Connector {
	sentinels := sentinelAddrsFlag(v)
	if len(sentinels) > 0 {
		l.Info("using sentinel store topology",
			zap.Strings("sentinels", sentinels),
			zap.String("master", sentinelMasterFlag(v)),
		)
		return keystore.NewSentinelConnector(l, sentinels, sentinelMasterFlag(v), storeDBFlag(v),
			keystore.SentinelConnectorWithResolveAttempts(storeResolveAttemptsFlag(v)),
		)
	}
	l.Info("using direct store topology", zap.String("addr", storeAddrFlag(v)))
	return keystore.NewDirectConnector(storeAddrFlag(v), storeDBFlag(v))
}

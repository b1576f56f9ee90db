package cmd

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func logLevelFlag(v *viper.Viper) string {
	return v.GetString("log.level")
}

func addLogLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-level", "info", "log level")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func logFormatFlag(v *viper.Viper) string {
	return v.GetString("log.format")
}

func addLogFormatFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-format", "json", "log format")
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindEnv("log.format", "LOG_FORMAT")
}

func addressFlag(v *viper.Viper) string {
	return v.GetString("address")
}

func addAddressFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("address", ":8080", "Address to bind to (host:port)")
	_ = v.BindPFlag("address", flags.Lookup("address"))
	_ = v.BindEnv("address", "PAIR_BRIDGE_ADDRESS")
}

func basePathFlag(v *viper.Viper) string {
	return v.GetString("base_path")
}

func addBasePathFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("base-path", "/pairbridge", "Base path to export the webserver on")
	_ = v.BindPFlag("base_path", flags.Lookup("base-path"))
	_ = v.BindEnv("base_path", "PAIR_BRIDGE_BASE_PATH")
}

func storeAddrFlag(v *viper.Viper) string {
	return v.GetString("store.addr")
}

func addStoreAddrFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("store-addr", "localhost:6379", "Address of the backing store (host:port)")
	_ = v.BindPFlag("store.addr", flags.Lookup("store-addr"))
	_ = v.BindEnv("store.addr", "PAIR_BRIDGE_STORE_ADDR")
}

func storeDBFlag(v *viper.Viper) int {
	return v.GetInt("store.db")
}

func addStoreDBFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("store-db", 0, "Database index on the backing store")
	_ = v.BindPFlag("store.db", flags.Lookup("store-db"))
	_ = v.BindEnv("store.db", "PAIR_BRIDGE_STORE_DB")
}

func sentinelAddrsFlag(v *viper.Viper) []string {
	return v.GetStringSlice("store.sentinels")
}

func addSentinelAddrsFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.StringSlice("store-sentinels", nil, "Sentinel monitor endpoints; when set, the primary is resolved through them instead of store-addr")
	_ = v.BindPFlag("store.sentinels", flags.Lookup("store-sentinels"))
	_ = v.BindEnv("store.sentinels", "PAIR_BRIDGE_STORE_SENTINELS")
}

func sentinelMasterFlag(v *viper.Viper) string {
	return v.GetString("store.sentinel_master")
}

func addSentinelMasterFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("store-sentinel-master", "mymaster", "Name of the monitored primary")
	_ = v.BindPFlag("store.sentinel_master", flags.Lookup("store-sentinel-master"))
	_ = v.BindEnv("store.sentinel_master", "PAIR_BRIDGE_STORE_SENTINEL_MASTER")
}

func storeResolveAttemptsFlag(v *viper.Viper) int {
	return v.GetInt("store.resolve_attempts")
}

func addStoreResolveAttemptsFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("store-resolve-attempts", 3, "Attempts to resolve a writable store member per operation")
	_ = v.BindPFlag("store.resolve_attempts", flags.Lookup("store-resolve-attempts"))
	_ = v.BindEnv("store.resolve_attempts", "PAIR_BRIDGE_STORE_RESOLVE_ATTEMPTS")
}

func sessionTTLFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("ttl.session")
}

func addSessionTTLFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("session-ttl", 24*time.Hour, "Default session record TTL")
	_ = v.BindPFlag("ttl.session", flags.Lookup("session-ttl"))
	_ = v.BindEnv("ttl.session", "PAIR_BRIDGE_SESSION_TTL")
}

func pushBindingTTLFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("ttl.push_binding")
}

func addPushBindingTTLFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("push-binding-ttl", 24*time.Hour, "Default push binding TTL")
	_ = v.BindPFlag("ttl.push_binding", flags.Lookup("push-binding-ttl"))
	_ = v.BindEnv("ttl.push_binding", "PAIR_BRIDGE_PUSH_BINDING_TTL")
}

func callTTLFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("ttl.call")
}

func addCallTTLFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("call-ttl", time.Hour, "Default call record TTL")
	_ = v.BindPFlag("ttl.call", flags.Lookup("call-ttl"))
	_ = v.BindEnv("ttl.call", "PAIR_BRIDGE_CALL_TTL")
}

func callStatusTTLFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("ttl.call_status")
}

func addCallStatusTTLFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("call-status-ttl", 10*time.Minute, "Default call status TTL")
	_ = v.BindPFlag("ttl.call_status", flags.Lookup("call-status-ttl"))
	_ = v.BindEnv("ttl.call_status", "PAIR_BRIDGE_CALL_STATUS_TTL")
}

func pushEndpointFlag(v *viper.Viper) string {
	return v.GetString("push.endpoint")
}

func addPushEndpointFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("push-endpoint", "https://fcm.googleapis.com/fcm/send", "Push delivery endpoint for token destinations")
	_ = v.BindPFlag("push.endpoint", flags.Lookup("push-endpoint"))
	_ = v.BindEnv("push.endpoint", "PAIR_BRIDGE_PUSH_ENDPOINT")
}

func pushAPIKeyFlag(v *viper.Viper) string {
	return v.GetString("push.api_key")
}

func addPushAPIKeyFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("push-api-key", "", "API key sent to the push endpoint")
	_ = v.BindPFlag("push.api_key", flags.Lookup("push-api-key"))
	_ = v.BindEnv("push.api_key", "PAIR_BRIDGE_PUSH_API_KEY")
}

func pushMaxAttemptsFlag(v *viper.Viper) int {
	return v.GetInt("push.max_attempts")
}

func addPushMaxAttemptsFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("push-max-attempts", 3, "Maximum push delivery attempts")
	_ = v.BindPFlag("push.max_attempts", flags.Lookup("push-max-attempts"))
	_ = v.BindEnv("push.max_attempts", "PAIR_BRIDGE_PUSH_MAX_ATTEMPTS")
}

func pushMaxBackoffFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("push.max_backoff")
}

func addPushMaxBackoffFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("push-max-backoff", 30*time.Second, "Cumulative cap on Retry-After sleeps per delivery")
	_ = v.BindPFlag("push.max_backoff", flags.Lookup("push-max-backoff"))
	_ = v.BindEnv("push.max_backoff", "PAIR_BRIDGE_PUSH_MAX_BACKOFF")
}

func pushTimeoutFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("push.timeout")
}

func addPushTimeoutFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("push-timeout", 10*time.Second, "Timeout for a single push delivery request")
	_ = v.BindPFlag("push.timeout", flags.Lookup("push-timeout"))
	_ = v.BindEnv("push.timeout", "PAIR_BRIDGE_PUSH_TIMEOUT")
}

func gracefulPeriodFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("graceful_period")
}

func addGracefulPeriodFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("graceful-period", 30*time.Second, "Grace period for graceful shutdown")
	_ = v.BindPFlag("graceful_period", flags.Lookup("graceful-period"))
	_ = v.BindEnv("graceful_period", "PAIR_BRIDGE_GRACEFUL_PERIOD")
}

func serviceHealthzEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.healthz.enabled")
}

func addServiceHealthzEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-healthz-enabled", false, "Enable healthz service")
	_ = v.BindPFlag("service.healthz.enabled", flags.Lookup("service-healthz-enabled"))
}

func servicePrometheusEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.prometheus.enabled")
}

func addServicePrometheusEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-prometheus-enabled", false, "Enable prometheus service")
	_ = v.BindPFlag("service.prometheus.enabled", flags.Lookup("service-prometheus-enabled"))
}

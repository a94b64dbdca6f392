// Package config loads service configuration from a YAML file, a .env file,
// environment variables and command-line flags using Viper.
//
// # Usage
//
//	var cfg relay.Config
//	err := config.LoadConfig("pitwall", &cfg,
//	    config.WithConfigFile(path),
//	    config.WithFlags(pflag.CommandLine),
//	)
//
// Environment variables carry the upper-cased service name as prefix and use
// underscores for nesting, e.g. PITWALL_GRPC_PORT sets grpc.port and
// PITWALL_OBSERVER_LAG_POLICY sets observer.lag_policy.
package config

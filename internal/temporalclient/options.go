// Package temporalclient loads Temporal client configuration through the
// SDK's envconfig contrib package, so workers and the CLI pick up
// TEMPORAL_ADDRESS, TEMPORAL_NAMESPACE, TLS settings, and config.toml files
// without bespoke flag plumbing.
package temporalclient

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/contrib/envconfig"
)

// LoadClientOptions loads Temporal client options from the environment and
// optional config file. Non-empty overrides win over the loaded values.
func LoadClientOptions(hostPortOverride, namespaceOverride string) (client.Options, error) {
	opts, err := envconfig.LoadClientOptions(envconfig.LoadClientOptionsRequest{})
	if err != nil {
		return client.Options{}, err
	}

	if hostPortOverride != "" {
		opts.HostPort = hostPortOverride
	}
	if namespaceOverride != "" {
		opts.Namespace = namespaceOverride
	}

	return opts, nil
}

// MustLoadClientOptions is like LoadClientOptions but panics on error.
func MustLoadClientOptions(hostPortOverride, namespaceOverride string) client.Options {
	opts, err := LoadClientOptions(hostPortOverride, namespaceOverride)
	if err != nil {
		panic("failed to load Temporal client options: " + err.Error())
	}
	return opts
}

// Package statsd is a helper package that wraps some common statsd methods.
// It hides the datadog dependency so if we decide to migrate away from datadog in the future, we only need to
// edit this single file.
package statsd

import (
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

var client ddstatsd.ClientInterface = &ddstatsd.NoOpClient{}

func Client() ddstatsd.ClientInterface {
	return client
}

// EmitTiming records the time elapsed since start under name.
func EmitTiming(start time.Time, name string, tags ...string) {
	duration := time.Since(start)
	if err := Client().Timing(name, duration, tags, 1); err != nil {
		log.Logger.Warn().Err(err).Str("metric", name).Msg("failed to emit timing")
	}
}

// EmitGauge records the current value of name.
func EmitGauge(name string, value float64, tags ...string) {
	if err := Client().Gauge(name, value, tags, 1); err != nil {
		log.Logger.Warn().Err(err).Str("metric", name).Msg("failed to emit gauge")
	}
}

func Init(address string, tags []string) error {
	if address == "" {
		return eris.New("address must not be empty")
	}
	opts := []ddstatsd.Option{
		// The statsd namespace is the prefix of all metrics
		ddstatsd.WithNamespace("ecstore."),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	newClient, err := ddstatsd.New(address, opts...)
	if err != nil {
		return eris.Wrap(err, "")
	}
	// Success! replace the global client
	client = newClient
	return nil
}

// Use replaces the global client and returns a function restoring the previous one.
func Use(c ddstatsd.ClientInterface) (restore func()) {
	prev := client
	client = c
	return func() {
		client = prev
	}
}

// Package statsd is a helper package that wraps the few statsd calls the keeper makes.
// It hides the datadog dependency so a different statsd client only needs changes here.
package statsd

import (
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

const namespace = "keeper."

var client ddstatsd.ClientInterface = &ddstatsd.NoOpClient{}

func Client() ddstatsd.ClientInterface {
	return client
}

// EmitTickStat records how long a tick took, tagged with whether the trigger fired.
func EmitTickStat(duration time.Duration, triggered bool) {
	tags := []string{"triggered:false"}
	if triggered {
		tags = []string{"triggered:true"}
	}
	if err := Client().Timing("tick", duration, tags, 1); err != nil {
		log.Logger.Warn().Msgf("failed to emit tick stat: %v", err)
	}
}

// IncrSubmission counts a submitted action by its outcome.
func IncrSubmission(action, outcome string) {
	tags := []string{"action:" + action, "outcome:" + outcome}
	if err := Client().Incr("submission", tags, 1); err != nil {
		log.Logger.Warn().Msgf("failed to emit submission stat: %v", err)
	}
}

// GaugeEpoch reports the epoch the keeper is currently tracking.
func GaugeEpoch(epoch uint64, state string) {
	if err := Client().Gauge("epoch", float64(epoch), []string{"state:" + state}, 1); err != nil {
		log.Logger.Warn().Msgf("failed to emit epoch gauge: %v", err)
	}
}

func Init(address string, tags []string) error {
	if address == "" {
		return eris.New("address must not be empty")
	}
	opts := []ddstatsd.Option{
		// The statsd namespace is the prefix of all metrics
		ddstatsd.WithNamespace(namespace),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	newClient, err := ddstatsd.New(address, opts...)
	if err != nil {
		return eris.Wrap(err, "failed to create statsd client")
	}
	// Success! replace the global client
	client = newClient
	return nil
}

// Close flushes and closes the client set by Init.
func Close() error {
	if err := client.Close(); err != nil {
		return eris.Wrap(err, "failed to close statsd client")
	}
	client = &ddstatsd.NoOpClient{}
	return nil
}

package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{name: "single broker", raw: "localhost:9092", expected: []string{"localhost:9092"}},
		{name: "multiple brokers", raw: "a:9092,b:9092", expected: []string{"a:9092", "b:9092"}},
		{name: "whitespace trimmed", raw: " a:9092 , b:9092 ", expected: []string{"a:9092", "b:9092"}},
		{name: "stray commas dropped", raw: "a:9092,,b:9092,", expected: []string{"a:9092", "b:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			brokers, err := brokerList(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, brokers)
		})
	}

	t.Run("empty value", func(t *testing.T) {
		t.Parallel()

		_, err := brokerList("")
		assert.ErrorIs(t, err, ErrNoBrokers)
	})

	t.Run("only commas", func(t *testing.T) {
		t.Parallel()

		_, err := brokerList(", ,")
		assert.ErrorIs(t, err, ErrNoBrokers)
	})
}

func TestSubscriberConfig(t *testing.T) {
	t.Parallel()

	config := subscriberConfig([]string{"localhost:9092"}, "leadflow")

	assert.Equal(t, []string{"localhost:9092"}, config.Brokers)
	assert.Equal(t, "cg-leadflow", config.ConsumerGroup)
	assert.True(t, config.OTELEnabled)
	require.NotNil(t, config.OverwriteSaramaConfig)
	assert.Equal(t, sarama.OffsetOldest, config.OverwriteSaramaConfig.Consumer.Offsets.Initial)
}

func TestPublisherConfig(t *testing.T) {
	t.Parallel()

	config := publisherConfig([]string{"a:9092", "b:9092"})

	assert.Equal(t, []string{"a:9092", "b:9092"}, config.Brokers)
	assert.True(t, config.OTELEnabled)
	require.NotNil(t, config.OverwriteSaramaConfig)
	assert.True(t, config.OverwriteSaramaConfig.Producer.Return.Successes)
}

func TestCreateChannel_NoBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	_, _, err := CreateChannel(watermill.NewSlogLogger(nil), "leadflow")
	assert.ErrorIs(t, err, ErrNoBrokers)
}

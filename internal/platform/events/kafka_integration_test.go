//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"attest/internal/platform/events"
	"attest/internal/review"
	"attest/pkg/testutil/containers"
)

func TestKafkaPublisherRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := containers.NewRedpandaContainer(t)

	const topic = "attest.review.events"
	publisher, err := events.NewKafka(ctx, broker.Brokers, topic, nil)
	require.NoError(t, err)
	defer publisher.Close()

	published := review.ReviewRequested{
		RequestID:   "req_0123456789ab",
		TargetID:    "MAP-001",
		Priority:    review.PriorityHigh,
		SubmittedBy: "alice",
		SubmittedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, publisher.Publish(ctx, published))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "review_requested", string(records[0].Key))

	var got struct {
		Event   string                 `json:"event"`
		Payload review.ReviewRequested `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, "review_requested", got.Event)
	require.Equal(t, published.RequestID, got.Payload.RequestID)
	require.Equal(t, published.TargetID, got.Payload.TargetID)
}

package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/polzat/internal/crawler"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "results", crawler.ScrapeResult{ExecutionID: "e1", URL: "http://a/"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "audit", map[string]string{"k": "v"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "results", msgs[0].Topic)
	require.Equal(t, "audit", msgs[1].Topic)

	var got crawler.ScrapeResult
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, "e1", got.ExecutionID)

	msgs[0].Topic = "modified"
	require.Equal(t, "results", pub.Messages()[0].Topic)
	require.Equal(t, 2, pub.Len())
}

func TestPublisherRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "results", make(chan int))
	require.Error(t, err)
	require.Zero(t, pub.Len())
}

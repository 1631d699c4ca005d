package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, 7, "first"))
	require.NoError(t, p.Publish(ctx, 9, "second"))

	msgs := p.Messages()
	require.Equal(t, []Message{
		{ChatID: 7, Text: "first"},
		{ChatID: 9, Text: "second"},
	}, msgs)

	// The returned slice is a copy.
	msgs[0].Text = "mutated"
	require.Equal(t, "first", p.Messages()[0].Text)
}

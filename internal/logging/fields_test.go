package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFields(t *testing.T) {
	ctx := WithFields(context.Background())
	AddField(ctx, ClientID("default"))
	AddField(ctx, Tool("list_sheets"))

	assert.Equal(t, []slog.Attr{ClientID("default"), Tool("list_sheets")}, Fields(ctx))
}

func TestFields_WithoutCollector(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() { AddField(ctx, ClientID("default")) })
	assert.Nil(t, Fields(ctx))
}

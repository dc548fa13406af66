package workers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/infrastructure/telegram"
	"github.com/bimakw/token-radar/internal/testutil"
)

type ingested struct {
	source string
	text   string
}

type fakeIngester struct {
	mu    sync.Mutex
	calls []ingested
	err   error
}

func (f *fakeIngester) Ingest(ctx context.Context, source, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ingested{source: source, text: text})
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func TestTelegramPoller_IngestsMessages(t *testing.T) {
	source := &testutil.MockMessageSource{}
	source.Queue(
		telegram.Message{MessageID: 1, Chat: telegram.Chat{ID: -100, Username: "l2gems"}, Text: "new: " + testutil.TokenAddress},
		telegram.Message{MessageID: 2, Chat: telegram.Chat{ID: -200}, Caption: "$FOO " + testutil.TokenAddress2},
	)
	ingester := &fakeIngester{}

	p := NewTelegramPoller(source, ingester, 0, newTestMetrics(t), zap.NewNop())
	require.NoError(t, p.RunCycle(context.Background()))

	require.Len(t, ingester.calls, 2)
	assert.Equal(t, ingested{source: "@l2gems", text: "new: " + testutil.TokenAddress}, ingester.calls[0])
	assert.Equal(t, "$FOO "+testutil.TokenAddress2, ingester.calls[1].text)

	// queue drained
	require.NoError(t, p.RunCycle(context.Background()))
	assert.Len(t, ingester.calls, 2)
}

func TestTelegramPoller_IngestErrorsDoNotFailCycle(t *testing.T) {
	source := &testutil.MockMessageSource{}
	source.Queue(
		telegram.Message{MessageID: 1, Text: "a"},
		telegram.Message{MessageID: 2, Text: "b"},
	)
	ingester := &fakeIngester{err: errors.New("cache down")}

	p := NewTelegramPoller(source, ingester, 0, newTestMetrics(t), zap.NewNop())
	assert.NoError(t, p.RunCycle(context.Background()))
	assert.Len(t, ingester.calls, 2)
}

func TestTelegramPoller_PollError(t *testing.T) {
	source := &testutil.MockMessageSource{Err: errors.New("unauthorized")}
	ingester := &fakeIngester{}

	p := NewTelegramPoller(source, ingester, 0, newTestMetrics(t), zap.NewNop())
	assert.Error(t, p.RunCycle(context.Background()))
	assert.Empty(t, ingester.calls)
}

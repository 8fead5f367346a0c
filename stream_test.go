package cora

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayied/cora/core"
)

// drain collects every delta and the terminal answer from a stream.
func drain(t *testing.T, events <-chan StreamEvent) ([]string, core.Answer) {
	t.Helper()
	var deltas []string
	var final *core.Answer
	for event := range events {
		if event.Answer != nil {
			require.Nil(t, final, "terminal event must be unique")
			final = event.Answer
			continue
		}
		require.Nil(t, final, "no deltas after the terminal event")
		deltas = append(deltas, event.Delta)
	}
	require.NotNil(t, final, "stream must end with a terminal event")
	return deltas, *final
}

func TestAskStreamEnglishStreamsTokens(t *testing.T) {
	a, _, tr := newTestAssistant([]core.SearchHit{hitWithSimilarity("1", 0.9)}, nil)
	defer a.Close()

	sessionID, events, err := a.AskStream(context.Background(), AskRequest{
		Question: "How do I enable VoLTE?",
		Language: "en",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)

	deltas, final := drain(t, events)
	assert.Equal(t, core.Answered, final.Kind)
	assert.Equal(t, sessionID, final.SessionID)

	// English output streams incrementally and reassembles into the answer.
	assert.Greater(t, len(deltas), 1)
	assert.Equal(t, final.Answer, strings.Join(deltas, ""))
	assert.Zero(t, tr.calls)
}

func TestAskStreamTranslatedSingleChunk(t *testing.T) {
	a, _, _ := newTestAssistant([]core.SearchHit{hitWithSimilarity("1", 0.9)}, nil)
	defer a.Close()

	sessionID, events, err := a.AskStream(context.Background(), AskRequest{
		Question: "كيف أفعل eSIM؟",
		Language: "ar",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)

	deltas, final := drain(t, events)
	assert.Equal(t, core.Answered, final.Kind)

	// Translation needs the full English text, so the answer arrives whole.
	require.Len(t, deltas, 1)
	assert.Equal(t, final.Answer, deltas[0])
	assert.True(t, strings.HasPrefix(final.Answer, "ar:"))
	assert.NotEmpty(t, final.OriginalAnswerEN)
}

func TestAskStreamNoContext(t *testing.T) {
	a, _, _ := newTestAssistant(nil, nil)
	defer a.Close()

	sessionID, events, err := a.AskStream(context.Background(), AskRequest{
		Question: "unrelated question",
		Language: "en",
	})
	require.NoError(t, err)

	deltas, final := drain(t, events)
	assert.Equal(t, core.NoContext, final.Kind)
	require.Len(t, deltas, 1)
	assert.Equal(t, a.cfg.NoContextMessage, deltas[0])

	sess := a.sessions.GetOrCreate(sessionID)
	assert.Equal(t, 2, sess.TurnCount())
}

func TestAskStreamPersistsAfterCompletion(t *testing.T) {
	a, _, _ := newTestAssistant([]core.SearchHit{hitWithSimilarity("1", 0.9)}, nil)
	defer a.Close()

	sessionID, events, err := a.AskStream(context.Background(), AskRequest{
		Question: "streamed question",
		Language: "en",
	})
	require.NoError(t, err)

	_, final := drain(t, events)
	require.Equal(t, core.Answered, final.Kind)

	sess := a.sessions.GetOrCreate(sessionID)
	require.Equal(t, 2, sess.TurnCount())
	turns := sess.Turns()
	assert.Equal(t, "streamed question", turns[0].Content)
	assert.Equal(t, final.Answer, turns[1].Content)
}

func TestAskStreamAbandonedConsumerReleasesProducer(t *testing.T) {
	a, _, _ := newTestAssistant([]core.SearchHit{hitWithSimilarity("1", 0.9)}, nil)
	defer a.Close()

	before := runtime.NumGoroutine()

	// Each answer is longer than the event buffer, so an undrained producer
	// would block on a delta send.
	var cancels []context.CancelFunc
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancels = append(cancels, cancel)
		_, _, err := a.AskStream(ctx, AskRequest{
			Question: "walk me through an eSIM transfer step by step",
			Language: "en",
		})
		require.NoError(t, err)
	}

	// Abandon every stream without reading a single event.
	for _, cancel := range cancels {
		cancel()
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 2*time.Second, 10*time.Millisecond, "abandoned streams must not pin producer goroutines")
}

func TestAskStreamEmptyQuestion(t *testing.T) {
	a, _, _ := newTestAssistant(nil, nil)
	defer a.Close()

	_, _, err := a.AskStream(context.Background(), AskRequest{Question: ""})
	assert.Error(t, err)
}

package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docsmith/internal/llm"
	"docsmith/internal/store"
)

type mockChat struct {
	mock.Mock
}

func (m *mockChat) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *mockChat) Model() string { return "mock" }

func TestOverview(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.ReplaceFile(store.File{Path: "mod.py", Hash: "h", Language: "python"}, []store.Entry{
		{ChunkID: "Foo", Kind: "class", Summary: "Holds foo state."},
		{ChunkID: "baz", Kind: "function", Summary: "Summary generation failed."},
	}))

	chat := new(mockChat)
	chat.On("Generate", mock.Anything, mock.MatchedBy(func(msgs []llm.Message) bool {
		p := msgs[0].Content
		return strings.Contains(p, "### mod.py  (python, 2 chunks)") &&
			strings.Contains(p, "- [class] Foo: Holds foo state.") &&
			strings.Contains(p, "- [function] baz\n")
	})).Return("<think>plan</think>\n# Overview\n\nDoes foo.\n", nil)

	out, err := Overview(context.Background(), chat, st)
	require.NoError(t, err)
	assert.Equal(t, "# Overview\n\nDoes foo.", out)
	chat.AssertExpectations(t)
}

func TestOverview_EmptyIndex(t *testing.T) {
	_, err := Overview(context.Background(), new(mockChat), openStore(t))
	assert.ErrorIs(t, err, store.ErrIndexEmpty)
}

func TestThinkless(t *testing.T) {
	assert.Equal(t, "a\nb", thinkless("a<think>x</think>\nb"))
	assert.Equal(t, "keep ", thinkless("keep <think>unterminated"))
}

package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/tull/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	home := t.TempDir()
	s := store.New(filepath.Join(home, "data"), filepath.Join(home, "meta"))
	require.NoError(t, s.EnsureDirectories())
	return s
}

func TestRun_CapturesLinesInOrder(t *testing.T) {
	for _, n := range []int{1, 2, 10, 500} {
		t.Run(fmt.Sprintf("%d lines", n), func(t *testing.T) {
			s := newTestStore(t)

			var input strings.Builder
			want := make([]string, n)
			for i := 0; i < n; i++ {
				want[i] = fmt.Sprintf("line %d", i)
				input.WriteString(want[i] + "\n")
			}

			var out bytes.Buffer
			res, err := Run(context.Background(), Options{
				Store: s,
				In:    strings.NewReader(input.String()),
				Out:   &out,
			})
			require.NoError(t, err)
			assert.Equal(t, n, res.Lines)
			assert.False(t, res.Discarded)

			lines, ok, err := s.ReadLines(res.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want, lines)
			assert.Equal(t, input.String(), out.String())
		})
	}
}

func TestRun_EmptyInputDiscardsSession(t *testing.T) {
	s := newTestStore(t)

	res, err := Run(context.Background(), Options{
		Store: s,
		In:    strings.NewReader(""),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Lines)
	assert.True(t, res.Discarded)
	assert.False(t, s.Exists(res.ID))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRun_FinalLineWithoutNewline(t *testing.T) {
	s := newTestStore(t)

	res, err := Run(context.Background(), Options{
		Store: s,
		In:    strings.NewReader("a\r\nb\nc"),
	})
	require.NoError(t, err)

	lines, _, err := s.ReadLines(res.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestRun_BlankLinesAreCaptured(t *testing.T) {
	s := newTestStore(t)

	res, err := Run(context.Background(), Options{
		Store: s,
		In:    strings.NewReader("\n\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Lines)
	assert.False(t, res.Discarded)

	lines, _, err := s.ReadLines(res.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, lines)
}

func TestRun_LongLine(t *testing.T) {
	s := newTestStore(t)
	long := strings.Repeat("x", 256*1024)

	res, err := Run(context.Background(), Options{
		Store: s,
		In:    strings.NewReader(long + "\n"),
	})
	require.NoError(t, err)

	lines, _, err := s.ReadLines(res.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, long, lines[0])
}

func TestRun_ReopenAppends(t *testing.T) {
	s := newTestStore(t)

	first, err := Run(context.Background(), Options{
		Store: s,
		In:    strings.NewReader("hello\n"),
	})
	require.NoError(t, err)

	second, err := Run(context.Background(), Options{
		Store: s,
		ID:    first.ID,
		In:    strings.NewReader("world\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	lines, _, err := s.ReadLines(first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, lines)
}

func TestRun_ReopenWithNoInputKeepsSession(t *testing.T) {
	s := newTestStore(t)

	first, err := Run(context.Background(), Options{
		Store: s,
		In:    strings.NewReader("keep\n"),
	})
	require.NoError(t, err)

	second, err := Run(context.Background(), Options{
		Store: s,
		ID:    first.ID,
		In:    strings.NewReader(""),
	})
	require.NoError(t, err)
	assert.False(t, second.Discarded)
	assert.True(t, s.Exists(first.ID))
}

func TestRun_ReopenNamedNewSession(t *testing.T) {
	s := newTestStore(t)

	res, err := Run(context.Background(), Options{
		Store: s,
		ID:    "deploy-notes",
		In:    strings.NewReader("step one\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "deploy-notes", res.ID)
	assert.True(t, s.Exists("deploy-notes"))
}

func TestRun_InvalidID(t *testing.T) {
	s := newTestStore(t)

	_, err := Run(context.Background(), Options{
		Store: s,
		ID:    "../outside",
		In:    strings.NewReader("x\n"),
	})
	assert.ErrorIs(t, err, store.ErrInvalidID)
}

func TestRun_MissingStore(t *testing.T) {
	_, err := Run(context.Background(), Options{In: strings.NewReader("")})
	assert.Error(t, err)
}

type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("terminal went away")
}

func TestRun_ReadErrorKeepsCapturedLines(t *testing.T) {
	s := newTestStore(t)

	res, err := Run(context.Background(), Options{
		Store: s,
		In:    &failingReader{data: "saved\n"},
	})
	require.Error(t, err)
	assert.Equal(t, 1, res.Lines)

	lines, _, readErr := s.ReadLines(res.ID)
	require.NoError(t, readErr)
	assert.Equal(t, []string{"saved"}, lines)
}

func TestRun_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, Options{
		Store: s,
		In:    strings.NewReader("never\n"),
		Out:   io.Discard,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Discarded)
}

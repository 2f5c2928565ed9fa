package unversioned

import (
	"testing"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(entries []storage.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, string(e.Key))
	}
	return out
}

func newFilledStore(t *testing.T) *Store {
	s := NewStore(storage.NewMemStorage(), 2)
	require.Nil(t, s.WithCommand(func(c *Command) error {
		for _, k := range []string{"idx/a", "idx/b", "idx/c", "other"} {
			c.Set([]byte(k), []byte("v-"+k))
		}
		return nil
	}))
	return s
}

func TestWithCommandCommits(t *testing.T) {
	s := newFilledStore(t)

	require.Nil(t, s.WithQuery(func(q *Query) error {
		val, err := q.Get([]byte("idx/a"))
		require.Nil(t, err)
		assert.Equal(t, []byte("v-idx/a"), val)

		ok, err := q.Contains([]byte("missing"))
		require.Nil(t, err)
		assert.False(t, ok)

		entries, err := q.Prefix([]byte("idx/"), 0)
		require.Nil(t, err)
		assert.Equal(t, []string{"idx/a", "idx/b", "idx/c"}, keys(entries))

		entries, err = q.RangeRev(storage.UnboundedBound(), storage.UnboundedBound(), 3)
		require.Nil(t, err)
		assert.Equal(t, []string{"other", "idx/c", "idx/b"}, keys(entries))

		entries, err = q.Range(storage.ExcludedBound([]byte("idx/a")), storage.IncludedBound([]byte("idx/c")), 0)
		require.Nil(t, err)
		assert.Equal(t, []string{"idx/b", "idx/c"}, keys(entries))
		return nil
	}))
}

func TestWithCommandDiscardsOnError(t *testing.T) {
	s := newFilledStore(t)
	boom := errors.New("boom")

	err := s.WithCommand(func(c *Command) error {
		c.Set([]byte("idx/z"), []byte("z"))
		c.Remove([]byte("idx/a"))
		return boom
	})
	assert.Equal(t, boom, errors.Cause(err))

	require.Nil(t, s.WithQuery(func(q *Query) error {
		ok, err := q.Contains([]byte("idx/z"))
		require.Nil(t, err)
		assert.False(t, ok)
		ok, err = q.Contains([]byte("idx/a"))
		require.Nil(t, err)
		assert.True(t, ok)
		return nil
	}))
}

func TestCommandReadsOwnWrites(t *testing.T) {
	s := newFilledStore(t)

	require.Nil(t, s.WithCommand(func(c *Command) error {
		c.Remove([]byte("idx/b"))
		c.Set([]byte("idx/d"), nil)
		c.Set([]byte("zzz"), []byte("out of prefix"))

		val, err := c.Get([]byte("idx/b"))
		require.Nil(t, err)
		assert.Nil(t, val)
		val, err = c.Get([]byte("idx/d"))
		require.Nil(t, err)
		assert.Equal(t, []byte{}, val)

		entries, err := c.Prefix([]byte("idx/"), 0)
		require.Nil(t, err)
		assert.Equal(t, []string{"idx/a", "idx/c", "idx/d"}, keys(entries))

		entries, err = c.RangeRev(storage.UnboundedBound(), storage.UnboundedBound(), 2)
		require.Nil(t, err)
		assert.Equal(t, []string{"zzz", "other"}, keys(entries))
		return nil
	}))

	require.Nil(t, s.WithQuery(func(q *Query) error {
		entries, err := q.Range(storage.UnboundedBound(), storage.UnboundedBound(), 0)
		require.Nil(t, err)
		assert.Equal(t, []string{"idx/a", "idx/c", "idx/d", "other", "zzz"}, keys(entries))
		return nil
	}))
}

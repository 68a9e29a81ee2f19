package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultCache_ETagMustMatch(t *testing.T) {
	c := NewResultCache(8, time.Hour)
	c.Set("loon:https://a", Entry{Name: "a.plugin", Body: "body", ETag: "etag-1"})

	got, ok := c.Get("loon:https://a", "etag-1")
	assert.True(t, ok)
	assert.Equal(t, "body", got.Body)
	assert.Equal(t, "a.plugin", got.Name)

	_, ok = c.Get("loon:https://a", "etag-2")
	assert.False(t, ok)

	_, ok = c.Get("surge:https://a", "etag-1")
	assert.False(t, ok)
}

func TestResultCache_Expires(t *testing.T) {
	c := NewResultCache(8, 20*time.Millisecond)
	c.Set("k", Entry{Body: "v", ETag: "e"})

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k", "e")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestResultCache_EvictsOldest(t *testing.T) {
	c := NewResultCache(2, time.Hour)
	c.Set("a", Entry{Body: "1"})
	c.Set("b", Entry{Body: "2"})
	c.Set("c", Entry{Body: "3"})

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a", "")
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

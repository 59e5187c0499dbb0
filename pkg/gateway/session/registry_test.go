package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stampchat/stampchat/pkg/core/types"
)

func TestRegistry_UnseenSessionHasNoRef(t *testing.T) {
	r := NewRegistry()
	ref, ok := r.Get("s1")
	assert.False(t, ok)
	assert.Empty(t, ref)
}

func TestRegistry_ContinuityAcrossTurns(t *testing.T) {
	r := NewRegistry()

	r.Update("s1", "thread_1")
	ref, ok := r.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "thread_1", ref)

	r.Update("s1", "thread_2")
	ref, ok = r.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "thread_2", ref)

	assert.Equal(t, 1, r.Count())
}

func TestRegistry_StampContextCapped(t *testing.T) {
	r := NewRegistry()

	var records []types.StampRecord
	for i := 0; i < 8; i++ {
		records = append(records, types.StampRecord{Name: "stamp", IssueYear: "1900"})
	}
	r.RememberStamps("s1", records)

	assert.Len(t, r.RecentStamps("s1"), 5)
}

func TestRegistry_StampContextExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRegistry(WithClock(func() time.Time { return now }))

	r.RememberStamps("s1", []types.StampRecord{{Name: "Penny Black"}})
	require.Len(t, r.RecentStamps("s1"), 1)

	now = now.Add(11 * time.Minute)
	assert.Nil(t, r.RecentStamps("s1"))
}

func TestRegistry_StampContextKeepsNewest(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRegistry(WithClock(func() time.Time { return now }))

	r.RememberStamps("s1", []types.StampRecord{{Name: "old"}})
	now = now.Add(time.Minute)
	for i := 0; i < 5; i++ {
		r.RememberStamps("s1", []types.StampRecord{{Name: "new"}})
	}

	stamps := r.RecentStamps("s1")
	require.Len(t, stamps, 5)
	for _, sc := range stamps {
		assert.Equal(t, "new", sc.Record.Name, "oldest entries should be evicted first")
	}
}

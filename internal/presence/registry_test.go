package presence_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/messenger/internal/presence"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRegisterAndGet(t *testing.T) {
	joined := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := presence.New(presence.WithClock(fixedClock(joined)))

	u, err := r.Register("c1", "alice", "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, presence.User{
		ID:       "c1",
		Username: "alice",
		Avatar:   "https://example.com/a.png",
		JoinedAt: joined,
	}, u)

	got, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterDuplicateConnection(t *testing.T) {
	r := presence.New()
	_, err := r.Register("c1", "alice", "")
	require.NoError(t, err)

	_, err = r.Register("c1", "mallory", "")
	require.ErrorIs(t, err, presence.ErrDuplicateConnection)

	got, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username, "duplicate must not overwrite")
}

func TestDuplicateUsernamesAllowed(t *testing.T) {
	r := presence.New()
	_, err := r.Register("c1", "sam", "")
	require.NoError(t, err)
	_, err = r.Register("c2", "sam", "")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

// TestDeregisterTwice verifies the second call reports ErrNotFound and
// leaves the registry untouched.
func TestDeregisterTwice(t *testing.T) {
	r := presence.New()
	_, err := r.Register("c1", "alice", "")
	require.NoError(t, err)
	_, err = r.SetTyping("c1", true)
	require.NoError(t, err)

	u, err := r.Deregister("c1")
	require.NoError(t, err)
	assert.True(t, u.IsTyping, "returns the last state")

	_, err = r.Deregister("c1")
	require.ErrorIs(t, err, presence.ErrNotFound)
	assert.Zero(t, r.Len())
}

func TestUnknownConnection(t *testing.T) {
	r := presence.New()

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, presence.ErrNotFound)
	_, err = r.SetTyping("nope", true)
	assert.ErrorIs(t, err, presence.ErrNotFound)
	_, err = r.Deregister("nope")
	assert.ErrorIs(t, err, presence.ErrNotFound)
}

func TestSetTyping(t *testing.T) {
	r := presence.New()
	_, err := r.Register("c1", "alice", "")
	require.NoError(t, err)

	u, err := r.SetTyping("c1", true)
	require.NoError(t, err)
	assert.True(t, u.IsTyping)

	u, err = r.SetTyping("c1", true)
	require.NoError(t, err)
	assert.True(t, u.IsTyping, "idempotent")

	u, err = r.SetTyping("c1", false)
	require.NoError(t, err)
	assert.False(t, u.IsTyping)
}

func TestListJoinOrderAndCopy(t *testing.T) {
	r := presence.New()
	for i := range 5 {
		_, err := r.Register(fmt.Sprintf("c%d", i), fmt.Sprintf("user%d", i), "")
		require.NoError(t, err)
	}
	_, err := r.Deregister("c2")
	require.NoError(t, err)

	list := r.List()
	ids := make([]string, 0, len(list))
	for _, u := range list {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"c0", "c1", "c3", "c4"}, ids)

	list[0].Username = "changed"
	got, err := r.Get("c0")
	require.NoError(t, err)
	assert.Equal(t, "user0", got.Username, "List must return a copy")

	assert.NotNil(t, presence.New().List(), "empty list is not nil")
}

// TestRegistryModel applies random operations to the registry and to a plain
// map and checks they agree after every step.
func TestRegistryModel(t *testing.T) {
	r := presence.New()
	model := map[string]presence.User{}
	rng := rand.New(rand.NewSource(42))

	for step := range 2000 {
		id := fmt.Sprintf("c%d", rng.Intn(20))
		switch rng.Intn(4) {
		case 0:
			_, err := r.Register(id, "u-"+id, "")
			if _, exists := model[id]; exists {
				require.ErrorIs(t, err, presence.ErrDuplicateConnection, "step %d", step)
			} else {
				require.NoError(t, err, "step %d", step)
				model[id] = presence.User{ID: id, Username: "u-" + id}
			}
		case 1:
			_, err := r.Deregister(id)
			if _, exists := model[id]; exists {
				require.NoError(t, err, "step %d", step)
				delete(model, id)
			} else {
				require.ErrorIs(t, err, presence.ErrNotFound, "step %d", step)
			}
		case 2:
			typing := rng.Intn(2) == 0
			_, err := r.SetTyping(id, typing)
			if u, exists := model[id]; exists {
				require.NoError(t, err, "step %d", step)
				u.IsTyping = typing
				model[id] = u
			} else {
				require.ErrorIs(t, err, presence.ErrNotFound, "step %d", step)
			}
		case 3:
			u, err := r.Get(id)
			if want, exists := model[id]; exists {
				require.NoError(t, err, "step %d", step)
				assert.Equal(t, want.IsTyping, u.IsTyping, "step %d", step)
			} else {
				require.ErrorIs(t, err, presence.ErrNotFound, "step %d", step)
			}
		}

		require.Equal(t, len(model), r.Len(), "step %d", step)
		for _, u := range r.List() {
			want, exists := model[u.ID]
			require.True(t, exists, "step %d: unexpected user %s", step, u.ID)
			require.Equal(t, want.IsTyping, u.IsTyping, "step %d", step)
		}
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := presence.New()
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				id := fmt.Sprintf("w%d-%d", w, i)
				_, _ = r.Register(id, id, "")
				_, _ = r.SetTyping(id, true)
				_ = r.List()
				_, _ = r.Deregister(id)
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, r.Len())
}

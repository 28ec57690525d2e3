package graph_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/graph"
)

var (
	alice = domain.UserRef{ID: 1, DisplayName: "Alice"}
	bob   = domain.UserRef{ID: 2, DisplayName: "Bob"}
	carol = domain.UserRef{ID: 3, DisplayName: "Carol"}
)

func pending(id domain.ID, from, to domain.UserRef, at time.Time) domain.ConnectionRequest {
	return domain.ConnectionRequest{ID: id, Sender: from, Receiver: to, Status: domain.RequestStatusPending, CreatedAt: at}
}

func connection(id domain.ID, a, b domain.UserRef) domain.Connection {
	return domain.Connection{ID: id, UserA: a, UserB: b, ConnectedAt: time.Now()}
}

func TestPairIsUnordered(t *testing.T) {
	assert.Equal(t, graph.Pair(1, 2), graph.Pair(2, 1))
	assert.NotEqual(t, graph.Pair(1, 2), graph.Pair(1, 3))
}

func TestRelationshipStatusFromBothSides(t *testing.T) {
	repo := graph.NewRepository()
	require.NoError(t, repo.UpsertRequest(pending(10, alice, bob, time.Now())))

	assert.Equal(t, domain.StatusPendingSent, repo.RelationshipStatus(alice.ID, bob.ID))
	assert.Equal(t, domain.StatusPendingReceived, repo.RelationshipStatus(bob.ID, alice.ID))
	assert.Equal(t, domain.StatusNone, repo.RelationshipStatus(alice.ID, carol.ID))
	assert.Equal(t, domain.StatusNone, repo.RelationshipStatus(alice.ID, alice.ID))
}

func TestSelfRequestRejected(t *testing.T) {
	repo := graph.NewRepository()
	err := repo.UpsertRequest(pending(1, alice, alice, time.Now()))
	require.ErrorIs(t, err, domain.ErrSelfRequest)

	err = repo.UpsertConnection(connection(1, bob, bob))
	require.ErrorIs(t, err, domain.ErrSelfRequest)

	err = repo.UpsertFollow(domain.Follow{ID: 1, Follower: carol, Following: carol})
	require.ErrorIs(t, err, domain.ErrSelfRequest)
	assert.Zero(t, repo.Version())
}

func TestPendingAndConnectedAreExclusive(t *testing.T) {
	repo := graph.NewRepository()
	require.NoError(t, repo.UpsertConnection(connection(5, alice, bob)))

	err := repo.UpsertRequest(pending(10, bob, alice, time.Now()))
	require.ErrorIs(t, err, domain.ErrAlreadyRelated)
	assert.Equal(t, domain.StatusConnected, repo.RelationshipStatus(alice.ID, bob.ID))

	require.NoError(t, repo.UpsertRequest(pending(11, alice, carol, time.Now())))
	err = repo.UpsertConnection(connection(6, carol, alice))
	require.ErrorIs(t, err, domain.ErrAlreadyRelated)
}

func TestSecondPendingRequestForPairRejected(t *testing.T) {
	repo := graph.NewRepository()
	require.NoError(t, repo.UpsertRequest(pending(10, alice, bob, time.Now())))

	err := repo.UpsertRequest(pending(11, bob, alice, time.Now()))
	require.ErrorIs(t, err, domain.ErrAlreadyRelated)

	// same id is a replacement, not a second request
	require.NoError(t, repo.UpsertRequest(pending(10, alice, bob, time.Now())))
}

func TestTerminalRequestReleasesPair(t *testing.T) {
	repo := graph.NewRepository()
	req := pending(10, alice, bob, time.Now())
	require.NoError(t, repo.UpsertRequest(req))

	req.Status = domain.RequestStatusAccepted
	require.NoError(t, repo.UpsertRequest(req))
	require.NoError(t, repo.UpsertConnection(connection(5, bob, alice)))

	assert.Equal(t, domain.StatusConnected, repo.RelationshipStatus(bob.ID, alice.ID))
	got, ok := repo.Request(10)
	require.True(t, ok)
	assert.Equal(t, domain.RequestStatusAccepted, got.Status)
	assert.Empty(t, repo.PendingIncoming(bob.ID))
}

func TestUpsertRequestDropsEmbeddedConnection(t *testing.T) {
	repo := graph.NewRepository()
	req := pending(10, alice, bob, time.Now())
	conn := connection(5, alice, bob)
	req.Status = domain.RequestStatusAccepted
	req.Connection = &conn
	require.NoError(t, repo.UpsertRequest(req))

	got, _ := repo.Request(10)
	assert.Nil(t, got.Connection)
}

func TestRemoveIsIdempotent(t *testing.T) {
	repo := graph.NewRepository()
	require.NoError(t, repo.UpsertConnection(connection(5, alice, bob)))

	_, ok := repo.RemoveConnection(5)
	assert.True(t, ok)
	v := repo.Version()

	_, ok = repo.RemoveConnection(5)
	assert.False(t, ok)
	_, ok = repo.RemoveRequest(99)
	assert.False(t, ok)
	assert.Equal(t, v, repo.Version(), "no-op removes must not bump the version")
	assert.Equal(t, domain.StatusNone, repo.RelationshipStatus(alice.ID, bob.ID))
}

func TestRemoveConnectionKeepsRequestHistory(t *testing.T) {
	repo := graph.NewRepository()
	req := pending(10, alice, bob, time.Now())
	req.Status = domain.RequestStatusAccepted
	require.NoError(t, repo.UpsertRequest(req))
	require.NoError(t, repo.UpsertConnection(connection(5, alice, bob)))

	repo.RemoveConnection(5)
	_, ok := repo.Request(10)
	assert.True(t, ok)
	assert.Len(t, repo.Requests(alice.ID), 1)
}

func TestConnectionReplacementForSamePair(t *testing.T) {
	repo := graph.NewRepository()
	require.NoError(t, repo.UpsertConnection(connection(-1, alice, bob)))
	require.NoError(t, repo.UpsertConnection(connection(42, alice, bob)))

	_, ok := repo.Connection(-1)
	assert.False(t, ok)
	got, ok := repo.ConnectionBetween(bob.ID, alice.ID)
	require.True(t, ok)
	assert.Equal(t, domain.ID(42), got.ID)
	assert.Len(t, repo.Connections(alice.ID), 1)
}

func TestPendingListsNewestFirst(t *testing.T) {
	repo := graph.NewRepository()
	now := time.Now()
	require.NoError(t, repo.UpsertRequest(pending(1, bob, alice, now.Add(-time.Hour))))
	require.NoError(t, repo.UpsertRequest(pending(2, carol, alice, now)))
	require.NoError(t, repo.UpsertRequest(pending(3, alice, domain.UserRef{ID: 4}, now)))

	in := repo.PendingIncoming(alice.ID)
	require.Len(t, in, 2)
	assert.Equal(t, domain.ID(2), in[0].ID)
	assert.Equal(t, domain.ID(1), in[1].ID)

	out := repo.PendingOutgoing(alice.ID)
	require.Len(t, out, 1)
	assert.Equal(t, domain.ID(3), out[0].ID)
}

func TestFollowsAreDirected(t *testing.T) {
	repo := graph.NewRepository()
	require.NoError(t, repo.UpsertFollow(domain.Follow{ID: 1, Follower: alice, Following: bob, CreatedAt: time.Now()}))

	assert.True(t, repo.IsFollowing(alice.ID, bob.ID))
	assert.False(t, repo.IsFollowing(bob.ID, alice.ID))
	assert.Equal(t, []domain.UserRef{bob}, repo.Following(alice.ID))
	assert.Equal(t, []domain.UserRef{alice}, repo.Followers(bob.ID))
	assert.Equal(t, domain.StatusNone, repo.RelationshipStatus(alice.ID, bob.ID), "follows do not affect connection status")

	// replacing a provisional follow with the confirmed one keeps a single edge
	require.NoError(t, repo.UpsertFollow(domain.Follow{ID: 7, Follower: alice, Following: bob}))
	assert.Len(t, repo.Following(alice.ID), 1)

	f, ok := repo.RemoveFollow(alice.ID, bob.ID)
	require.True(t, ok)
	assert.Equal(t, domain.ID(7), f.ID)
	assert.False(t, repo.IsFollowing(alice.ID, bob.ID))
}

func TestProvisionalIDs(t *testing.T) {
	repo := graph.NewRepository()
	a := repo.NextProvisionalID()
	b := repo.NextProvisionalID()
	assert.True(t, a.Provisional())
	assert.True(t, b.Provisional())
	assert.NotEqual(t, a, b)
}

func TestSnapshotRestore(t *testing.T) {
	repo := graph.NewRepository()
	now := time.Now().UTC()
	require.NoError(t, repo.UpsertRequest(pending(10, alice, bob, now)))
	require.NoError(t, repo.UpsertConnection(connection(5, alice, carol)))
	require.NoError(t, repo.UpsertConnection(connection(repo.NextProvisionalID(), bob, carol)))
	require.NoError(t, repo.UpsertFollow(domain.Follow{ID: 3, Follower: carol, Following: alice}))

	snap := repo.Snapshot()
	assert.Len(t, snap.Connections, 1, "provisional records are not persisted")

	restored := graph.NewRepository()
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, domain.StatusPendingSent, restored.RelationshipStatus(alice.ID, bob.ID))
	assert.Equal(t, domain.StatusConnected, restored.RelationshipStatus(carol.ID, alice.ID))
	assert.Equal(t, domain.StatusNone, restored.RelationshipStatus(bob.ID, carol.ID))
	assert.True(t, restored.IsFollowing(carol.ID, alice.ID))
}

func TestRestoreReportsInvalidRecords(t *testing.T) {
	snap := graph.Snapshot{
		Requests:    []domain.ConnectionRequest{pending(10, alice, bob, time.Now()), pending(11, carol, carol, time.Now())},
		Connections: []domain.Connection{connection(5, bob, alice)},
	}

	repo := graph.NewRepository()
	err := repo.Restore(snap)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyRelated)
	assert.ErrorIs(t, err, domain.ErrSelfRequest)
	assert.Equal(t, domain.StatusConnected, repo.RelationshipStatus(alice.ID, bob.ID))
}

func TestRestoreIsAtomicForReaders(t *testing.T) {
	repo := graph.NewRepository()
	snap := graph.Snapshot{
		Connections: []domain.Connection{connection(5, alice, bob)},
		Follows:     []domain.Follow{{ID: 6, Follower: alice, Following: carol}},
	}
	require.NoError(t, repo.Restore(snap))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var torn atomic.Int64
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if repo.RelationshipStatus(alice.ID, bob.ID) != domain.StatusConnected || !repo.IsFollowing(alice.ID, carol.ID) {
				torn.Add(1)
			}
		}
	}()

	for range 2000 {
		require.NoError(t, repo.Restore(snap))
	}
	close(stop)
	wg.Wait()
	assert.Zero(t, torn.Load(), "readers never see a partially restored graph")
}

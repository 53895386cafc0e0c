package repositories

import (
	"testing"

	"collab-lab/errors"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"
)

func newThreadRepository(t *testing.T) ThreadRepository {
	t.Helper()
	_, log, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.CleanupDB(badgerDB, blugeWriter) })
	return NewThreadRepository(badgerDB, log)
}

func TestThreadRepository_Attach_Increments(t *testing.T) {
	req := require.New(t)
	repo := newThreadRepository(t)
	parent := uuid.New()

	count, err := repo.Attach(parent, uuid.New())
	req.NoError(err)
	req.Equal(int64(1), count)

	count, err = repo.Attach(parent, uuid.New())
	req.NoError(err)
	req.Equal(int64(2), count)

	count, err = repo.ReplyCount(parent)
	req.NoError(err)
	req.Equal(int64(2), count)
}

func TestThreadRepository_Attach_To_Reply_Fails(t *testing.T) {
	req := require.New(t)
	repo := newThreadRepository(t)
	parent := uuid.New()
	reply := uuid.New()

	// Given a reply attached to a parent
	_, err := repo.Attach(parent, reply)
	req.NoError(err)

	// When attaching a further reply to that reply
	_, err = repo.Attach(reply, uuid.New())

	// Then the two-level depth invariant is enforced
	req.ErrorIs(err, errors.ErrNestedThreadNotAllowed)
}

func TestThreadRepository_Detach_Floors_At_Zero(t *testing.T) {
	req := require.New(t)
	repo := newThreadRepository(t)
	parent := uuid.New()
	reply := uuid.New()

	_, err := repo.Attach(parent, reply)
	req.NoError(err)

	count, err := repo.Detach(parent, reply)
	req.NoError(err)
	req.Equal(int64(0), count)

	// When detaching more times than were ever attached
	count, err = repo.Detach(parent, uuid.New())
	req.NoError(err)
	req.Equal(int64(0), count)
}

func TestThreadRepository_ParentOf(t *testing.T) {
	req := require.New(t)
	repo := newThreadRepository(t)
	parent := uuid.New()
	reply := uuid.New()

	// Given a top-level message
	found, err := repo.ParentOf(reply)
	req.NoError(err)
	req.Nil(found)

	// When it becomes a reply
	_, err = repo.Attach(parent, reply)
	req.NoError(err)

	found, err = repo.ParentOf(reply)
	req.NoError(err)
	req.NotNil(found)
	req.Equal(parent, *found)
}

package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_IncrementsWithinRange(t *testing.T) {
	db := newTestDB(t)
	repo := NewNumberRangeRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Assign(ctx, "ws-1", 100, 199))

	var got []int64
	for i := 0; i < 3; i++ {
		inTx(t, db, func(tx *sql.Tx) {
			n, err := repo.AllocateTx(ctx, tx, "ws-1")
			require.NoError(t, err)
			got = append(got, n)
		})
	}
	assert.Equal(t, []int64{100, 101, 102}, got)

	rng, err := repo.Get(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, int64(103), rng.Current)
}

func TestAllocate_DisjointRangesNeverCollide(t *testing.T) {
	db := newTestDB(t)
	repo := NewNumberRangeRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Assign(ctx, "ws-1", 100, 199))
	require.NoError(t, repo.Assign(ctx, "ws-2", 200, 299))

	seen := make(map[int64]string)
	for i := 0; i < 20; i++ {
		ws := "ws-1"
		if i%2 == 1 {
			ws = "ws-2"
		}
		inTx(t, db, func(tx *sql.Tx) {
			n, err := repo.AllocateTx(ctx, tx, ws)
			require.NoError(t, err)
			prev, dup := seen[n]
			require.False(t, dup, "number %d already issued to %s", n, prev)
			seen[n] = ws
		})
	}

	// Every number stays inside its workstation's band.
	for n, ws := range seen {
		if ws == "ws-1" {
			assert.True(t, n >= 100 && n <= 199)
		} else {
			assert.True(t, n >= 200 && n <= 299)
		}
	}
}

func TestAllocate_ExhaustedRange(t *testing.T) {
	db := newTestDB(t)
	repo := NewNumberRangeRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Assign(ctx, "ws-1", 100, 101))

	for _, want := range []int64{100, 101} {
		inTx(t, db, func(tx *sql.Tx) {
			n, err := repo.AllocateTx(ctx, tx, "ws-1")
			require.NoError(t, err)
			assert.Equal(t, want, n)
		})
	}

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = repo.AllocateTx(ctx, tx, "ws-1")
	assert.ErrorIs(t, err, ErrRangeExhausted)
}

func TestAllocate_MissingRange(t *testing.T) {
	db := newTestDB(t)
	repo := NewNumberRangeRepo(db)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = repo.AllocateTx(ctx, tx, "ws-unknown")
	assert.ErrorIs(t, err, ErrRangeNotFound)
}

func TestAssign_ReplacesExistingRange(t *testing.T) {
	db := newTestDB(t)
	repo := NewNumberRangeRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Assign(ctx, "ws-1", 100, 199))
	inTx(t, db, func(tx *sql.Tx) {
		_, err := repo.AllocateTx(ctx, tx, "ws-1")
		require.NoError(t, err)
	})

	// Re-assignment resets the cursor to the new band.
	require.NoError(t, repo.Assign(ctx, "ws-1", 500, 599))
	inTx(t, db, func(tx *sql.Tx) {
		n, err := repo.AllocateTx(ctx, tx, "ws-1")
		require.NoError(t, err)
		assert.Equal(t, int64(500), n)
	})
}

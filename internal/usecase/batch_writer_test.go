package usecase

import (
	"context"
	"fmt"
	"testing"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func deleteOps(n int) []entities.WriteOp {
	ops := make([]entities.WriteOp, n)
	for i := range ops {
		ops[i] = entities.DeleteOp(entities.RecordRef{Collection: "c", ID: fmt.Sprint(i)})
	}
	return ops
}

func TestBatchWriter_CommitCount(t *testing.T) {
	tests := []struct {
		name     string
		ops      int
		capacity int
		want     []int
	}{
		{"empty", 0, 500, nil},
		{"single partial", 1, 500, []int{1}},
		{"exact capacity", 500, 500, []int{500}},
		{"one over", 501, 500, []int{500, 1}},
		{"1200 records", 1200, 500, []int{500, 500, 200}},
		{"small capacity", 7, 3, []int{3, 3, 1}},
		{"default capacity", 600, 0, []int{500, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			var batches []int

			w, err := NewBatchWriter(store, tt.capacity, func(batch int, ops []entities.WriteOp) error {
				batches = append(batches, batch)
				return nil
			}, zap.NewNop())
			require.NoError(t, err)

			for _, op := range deleteOps(tt.ops) {
				require.NoError(t, w.Add(context.Background(), op))
			}
			require.NoError(t, w.Flush(context.Background()))

			assert.Equal(t, tt.want, store.CommitSizes())
			assert.Equal(t, len(tt.want), w.Commits())
			assert.Len(t, batches, len(tt.want))
			assert.Zero(t, w.Pending())
		})
	}
}

func TestBatchWriter_RejectsCapacityAboveLimit(t *testing.T) {
	_, err := NewBatchWriter(memory.NewStore(), entities.MaxBatchCapacity+1, nil, zap.NewNop())
	assert.ErrorIs(t, err, entities.ErrBatchSizeTooLarge)
}

func TestBatchWriter_CommitErrorKeepsBuffer(t *testing.T) {
	store := newFaultyStore()
	store.failCommitAt = 2

	w, err := NewBatchWriter(store, 2, nil, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	ops := deleteOps(4)
	require.NoError(t, w.Add(ctx, ops[0]))
	require.NoError(t, w.Add(ctx, ops[1]))
	require.NoError(t, w.Add(ctx, ops[2]))

	err = w.Add(ctx, ops[3])
	var commitErr *entities.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, 2, commitErr.Batch)
	assert.Equal(t, 2, commitErr.Size)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, 1, w.Commits())
	assert.Equal(t, 2, w.Pending())
}

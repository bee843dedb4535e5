package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

func newDoc(id string, createdAt time.Time) *models.Document {
	return &models.Document{
		ID:        id,
		FileName:  id + ".txt",
		MediaType: models.MediaTypeText,
		FileSize:  100,
		Status:    models.StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemStore_GetUnknownID(t *testing.T) {
	s := NewMemStore()
	_, err := s.GetDocumentByID(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemStore_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.CreateDocument(ctx, newDoc("d1", time.Now())))

	// pending -> completed skips processing.
	err := s.UpdateDocumentStatus(ctx, "d1", models.StatusCompleted, core.StatusUpdate{})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	require.NoError(t, s.UpdateDocumentStatus(ctx, "d1", models.StatusProcessing, core.StatusUpdate{}))
	require.NoError(t, s.UpdateDocumentStatus(ctx, "d1", models.StatusCompleted, core.StatusUpdate{}))

	// Completed is terminal.
	err = s.UpdateDocumentStatus(ctx, "d1", models.StatusProcessing, core.StatusUpdate{})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	err = s.UpdateDocumentStatus(ctx, "d1", models.StatusFailed, core.StatusUpdate{})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestMemStore_ChunkCountSetOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.CreateDocument(ctx, newDoc("d1", time.Now())))
	require.NoError(t, s.UpdateDocumentStatus(ctx, "d1", models.StatusProcessing, core.StatusUpdate{}))

	five, nine := 5, 9
	require.NoError(t, s.UpdateDocumentStatus(ctx, "d1", models.StatusProcessing, core.StatusUpdate{ChunkCount: &five}))
	require.NoError(t, s.UpdateDocumentStatus(ctx, "d1", models.StatusProcessing, core.StatusUpdate{ChunkCount: &nine}))

	doc, err := s.GetDocumentByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 5, doc.ChunkCount)
}

func TestMemStore_ErrorMessageOnFailure(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.CreateDocument(ctx, newDoc("d1", time.Now())))
	require.NoError(t, s.UpdateDocumentStatus(ctx, "d1", models.StatusProcessing, core.StatusUpdate{}))
	require.NoError(t, s.UpdateDocumentStatus(ctx, "d1", models.StatusFailed, core.StatusUpdate{ErrorMessage: "extract: boom"}))

	doc, err := s.GetDocumentByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Equal(t, "extract: boom", doc.ErrorMessage)
}

func TestMemStore_ListOrderingAndPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateDocument(ctx, newDoc(fmt.Sprintf("d%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	docs, total, err := s.ListDocuments(ctx, core.ListQuery{Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, docs, 2)
	// Newest first.
	assert.Equal(t, "d4", docs[0].ID)
	assert.Equal(t, "d3", docs[1].ID)

	docs, total, err = s.ListDocuments(ctx, core.ListQuery{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, docs, 1)
	assert.Equal(t, "d0", docs[0].ID)

	docs, total, err = s.ListDocuments(ctx, core.ListQuery{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, docs)
}

func TestMemStore_ListStatusFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.CreateDocument(ctx, newDoc("d1", time.Now())))
	require.NoError(t, s.CreateDocument(ctx, newDoc("d2", time.Now())))
	require.NoError(t, s.UpdateDocumentStatus(ctx, "d2", models.StatusProcessing, core.StatusUpdate{}))

	pending := models.StatusPending
	docs, total, err := s.ListDocuments(ctx, core.ListQuery{Status: &pending, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, docs, 1)
	assert.Equal(t, "d1", docs[0].ID)
}

func TestMemStore_ResetDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.CreateDocument(ctx, newDoc("d1", time.Now())))

	// Only failed documents can be reset.
	err := s.ResetDocument(ctx, "d1")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	require.NoError(t, s.UpdateDocumentStatus(ctx, "d1", models.StatusProcessing, core.StatusUpdate{}))
	three := 3
	require.NoError(t, s.UpdateDocumentStatus(ctx, "d1", models.StatusFailed, core.StatusUpdate{ChunkCount: &three, ErrorMessage: "embed: boom"}))

	require.NoError(t, s.ResetDocument(ctx, "d1"))
	doc, err := s.GetDocumentByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, doc.Status)
	assert.Zero(t, doc.ChunkCount)
	assert.Empty(t, doc.ErrorMessage)
	assert.Nil(t, doc.ProcessedAt)
}

func TestMemStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.CreateDocument(ctx, newDoc("d1", time.Now())))

	require.NoError(t, s.DeleteDocument(ctx, "d1"))
	_, err := s.GetDocumentByID(ctx, "d1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, "d1"), core.ErrNotFound)
}

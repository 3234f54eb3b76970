package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
	pg "github.com/vigilfeed/vigilfeed/internal/infra/adapter/persistence/postgres"
)

func TestArticleStore_ExistingURLs(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT url FROM articles").
		WillReturnRows(sqlmock.NewRows([]string{"url"}).
			AddRow("https://a.example/1").
			AddRow("https://a.example/2"))

	store := pg.NewArticleStore(db)
	got, err := store.ExistingURLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		"https://a.example/1": true,
		"https://a.example/2": true,
	}, got)
}

func TestArticleStore_Save_PopulatesIDOnConflictUpsert(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("INSERT INTO articles").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	store := pg.NewArticleStore(db)
	a := &entity.Article{
		Title: "New CVE", URL: "https://nvd.example/cve-1", SourceType: entity.SourceTypeNVD,
		PublishedAt: time.Now(), Extras: map[string]any{"cve_id": "CVE-2026-1"},
	}
	err := store.Save(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(42), a.ID)
}

func TestArticleStore_Unpushed_DecodesExtras(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectQuery("FROM articles").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "source_id", "title", "url", "summary", "published_at", "created_at",
			"source", "source_type", "published_date", "fetched_at", "content",
			"zh_summary", "category", "is_pushed", "extras",
		}).AddRow(
			int64(1), int64(0), "t", "https://x", "s", now, now,
			"Arxiv", "arxiv", "2026-07-01", now, "full text",
			"", "", false, []byte(`{"cve_id":"CVE-2026-1"}`),
		))

	store := pg.NewArticleStore(db)
	got, err := store.Unpushed(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CVE-2026-1", got[0].Extra("cve_id"))
	assert.False(t, got[0].IsPushed)
}

func TestArticleStore_MarkPushed_NoopOnEmpty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	store := pg.NewArticleStore(db)
	err := store.MarkPushed(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleStore_MarkPushed_UpdatesGivenIDs(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE articles SET is_pushed = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 2))

	store := pg.NewArticleStore(db)
	err := store.MarkPushed(context.Background(), []int64{1, 2})
	require.NoError(t, err)
}

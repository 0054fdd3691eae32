package video

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestPurgeDeletedFiles(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	thumb := "videos/u1/tok1_thumb.jpg"
	mock.ExpectQuery(`SELECT file_key, thumbnail_key FROM videos`).
		WillReturnRows(pgxmock.NewRows([]string{"file_key", "thumbnail_key"}).
			AddRow("videos/u1/tok1.mp4", &thumb).
			AddRow("videos/u1/tok2.mp4", nil))
	mock.ExpectExec(`UPDATE videos SET file_purged_at = now\(\)`).
		WithArgs("videos/u1/tok1.mp4").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE videos SET file_purged_at = now\(\)`).
		WithArgs("videos/u1/tok2.mp4").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	storage := &mockStorage{}
	PurgeDeletedFiles(context.Background(), mock, storage)

	if storage.deleteCallCount != 3 {
		t.Errorf("expected 3 object deletes (2 files, 1 thumbnail), got %d", storage.deleteCallCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestPurgeDeletedFiles_DeleteFailureSkipsMark(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT file_key, thumbnail_key FROM videos`).
		WillReturnRows(pgxmock.NewRows([]string{"file_key", "thumbnail_key"}).
			AddRow("videos/u1/tok1.mp4", nil))

	// A cancelled context makes the retry loop bail after the first attempt.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	storage := &mockStorage{deleteErr: context.DeadlineExceeded}
	PurgeDeletedFiles(ctx, mock, storage)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("file_purged_at must not be set when the delete failed: %v", err)
	}
}

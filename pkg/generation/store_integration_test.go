//go:build integration

package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/kotoba/pkg/storage/postgres/postgrestest"
)

func TestPostgresStore_RoundTrip(t *testing.T) {
	db := postgrestest.SetupPostgresContainer(t)
	ctx := context.Background()
	userID := postgrestest.CreateUser(t, db, "roundtrip@example.com")
	store := NewPostgresStore(db)

	written := &Record{
		UserID:          userID,
		Pipeline:        PipelineVideo,
		Platform:        PlatformYouTube,
		Dialect:         DialectKansai,
		VideoURL:        "https://youtube.com/watch?v=abc123",
		VideoID:         "abc123",
		OriginalText:    "Hello world\nSecond line",
		TranslatedTitle: "ハローワールドやで 🎉",
		TranslatedText:  "説明文 \"quoted\" , {braces}",
		Hashtags:        []string{"#関西弁", "#hello world", `#back\slash`, "#comma,tag"},
		OptimalPostTime: "金曜 21:00 JST",
		CulturalAdvice:  "ツッコミを入れる",
		Transcript: []TranscriptLine{
			{English: "Hello world", Japanese: "ハローワールドやで"},
			{English: "Second line", Japanese: "二行目 <b>&amp;</b>"},
		},
	}
	require.NoError(t, store.Create(ctx, written))
	require.NotEmpty(t, written.ID)

	read, err := store.Get(ctx, userID, written.ID)
	require.NoError(t, err)

	assert.Equal(t, written.TranslatedTitle, read.TranslatedTitle)
	assert.Equal(t, written.TranslatedText, read.TranslatedText)
	assert.Equal(t, written.Hashtags, read.Hashtags)
	assert.Equal(t, written.Transcript, read.Transcript)
	assert.Equal(t, written.OriginalText, read.OriginalText)
	assert.Equal(t, written.VideoID, read.VideoID)
	assert.Equal(t, written.CulturalAdvice, read.CulturalAdvice)

	otherUser := postgrestest.CreateUser(t, db, "other@example.com")
	_, err = store.Get(ctx, otherUser, written.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := store.ListByUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, written.ID, history[0].ID)
}

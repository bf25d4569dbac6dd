//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"character-studio/backend/internal/database"
	"character-studio/backend/internal/models"
	"character-studio/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type GormSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *gorm.DB
	repos     *Repositories
}

func TestGormSuite(t *testing.T) {
	suite.Run(t, new(GormSuite))
}

func (s *GormSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("studio"),
		postgres.WithUsername("studio"),
		postgres.WithPassword("studio"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(2*time.Minute),
		),
	)
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	m, err := database.NewMigrator(url, logger.Discard())
	s.Require().NoError(err)
	s.Require().NoError(m.Up())
	s.Require().NoError(m.Close())

	db, err := gorm.Open(gormpg.Open(url), &gorm.Config{TranslateError: true})
	s.Require().NoError(err)
	s.db = db
	s.repos = NewGormRepositories(db)
}

func (s *GormSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *GormSuite) SetupTest() {
	s.Require().NoError(s.db.Exec("TRUNCATE characters, prompts, assets, look_items, onboarding_steps CASCADE").Error)
}

func (s *GormSuite) TestStatusSnapshotRoundTrip() {
	ctx := context.Background()
	t := s.T()

	c := &models.Character{Name: "Mira", AvatarURL: "https://cdn/mira.png"}
	require.NoError(t, s.repos.Characters.Create(ctx, c))

	st := &models.Status{CharacterID: c.ID, Mood: models.MoodExcited, Description: "beach day"}
	require.NoError(t, s.repos.Statuses.Create(ctx, st))

	img := "https://cdn/start.png"
	st.GenerationStep = models.StepVideosReady
	st.GenerationStatus = models.GenerationStatusForStep(st.GenerationStep)
	st.SetOverlays(models.Overlays{Now: "at the beach", Health: "sunburnt"})
	st.SuggestionsList = []string{"hi", "swim?"}
	st.VideoScenes = []string{"waves", "sunset"}
	st.StartingImageURL = &img
	st.VideosPlaylist = []models.PlaylistEntry{{SceneIndex: 1, VideoURL: "https://cdn/v1.mp4", ScenePrompt: "sunset", Duration: 5}}
	require.NoError(t, s.repos.Statuses.Save(ctx, st))

	got, err := s.repos.Statuses.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationCompleted, got.GenerationStatus)
	assert.Equal(t, "sunburnt", got.Overlays().Health)
	assert.Equal(t, []string{"waves", "sunset"}, []string(got.VideoScenes))
	assert.Equal(t, st.VideosPlaylist[0], got.VideosPlaylist[0])
}

func (s *GormSuite) TestCascadeAndDefaults() {
	ctx := context.Background()
	t := s.T()

	c := &models.Character{Name: "Ren"}
	require.NoError(t, s.repos.Characters.Create(ctx, c))
	a := &models.Status{CharacterID: c.ID, Mood: models.MoodCalm}
	b := &models.Status{CharacterID: c.ID, Mood: models.MoodSad}
	require.NoError(t, s.repos.Statuses.Create(ctx, a))
	require.NoError(t, s.repos.Statuses.Create(ctx, b))

	require.NoError(t, s.repos.Statuses.MarkDefault(ctx, a.ID))
	require.NoError(t, s.repos.Statuses.ClearDefault(ctx, c.ID))
	require.NoError(t, s.repos.Statuses.MarkDefault(ctx, b.ID))

	gotA, err := s.repos.Statuses.Get(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := s.repos.Statuses.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, gotA.IsDefault)
	assert.True(t, gotB.IsDefault)

	require.NoError(t, s.repos.Characters.Delete(ctx, c.ID))
	n, err := s.repos.Statuses.Count(ctx, StatusFilter{CharacterID: c.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (s *GormSuite) TestLookItemOrdering() {
	ctx := context.Background()
	t := s.T()

	for i, id := range []string{"alpha", "beta"} {
		item := &models.LookItem{ID: id, Category: models.LookTransformation, Name: id, DisplayOrder: (i + 1) * 10, Enabled: true}
		require.NoError(t, s.repos.LookItems.Create(ctx, item))
	}

	max, err := s.repos.LookItems.MaxDisplayOrder(ctx, models.LookTransformation)
	require.NoError(t, err)
	assert.Equal(t, 20, max)

	require.NoError(t, s.repos.LookItems.SetDisplayOrders(ctx, models.LookTransformation, map[string]int{"alpha": 20, "beta": 10}))
	items, err := s.repos.LookItems.List(ctx, models.LookTransformation, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "beta", items[0].ID)

	err = s.repos.LookItems.Create(ctx, &models.LookItem{ID: "alpha", Category: models.LookTransformation, Name: "dup"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"character-studio/backend/internal/generation"
	"character-studio/backend/internal/models"
	"character-studio/backend/internal/onboarding"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/storage"
	"character-studio/backend/internal/workflow"
	"character-studio/backend/pkg/cache"
	"character-studio/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type env struct {
	mem      *repository.Memory
	repos    *repository.Repositories
	files    *storage.MemoryStorage
	store    *cache.MemoryStore
	sessions *workflow.Sessions
	svc      *Services
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.Discard()
	mem := repository.NewMemory()
	repos := mem.Repositories()
	files := storage.NewMemoryStorage("https://files.test")
	c := cache.NewCache(cache.Options{})
	store := cache.NewMemoryStore(c)
	feed := NewFeedService(repos.Characters, repos.Statuses, store, time.Minute, log)
	sessions := workflow.NewSessions(workflow.Deps{
		Store:      feed.StatusStore(),
		Characters: repos.Characters,
		Generator:  &generation.Fake{},
		Uploader:   files,
		Options:    workflow.DefaultOptions(),
		Logger:     log,
	}, time.Hour)
	t.Cleanup(func() {
		sessions.Close()
		c.Close()
	})

	return &env{
		mem:      mem,
		repos:    repos,
		files:    files,
		store:    store,
		sessions: sessions,
		svc: &Services{
			Characters:      NewCharacterService(repos.Characters, repos.Statuses, sessions, files, feed, log),
			Statuses:        NewStatusService(repos.Statuses, repos.Characters, sessions, feed, log),
			Prompts:         NewPromptService(repos.Prompts),
			Assets:          NewAssetService(repos.Assets, files, log),
			Templates:       NewLookService(models.LookTemplate, repos.LookItems, files),
			Transformations: NewLookService(models.LookTransformation, repos.LookItems, files),
			Dashboard:       NewDashboardService(repos),
			Feed:            feed,
			Onboarding:      NewOnboardingService(repos.Onboarding, store, time.Minute, log),
		},
	}
}

func (e *env) character(t *testing.T, name string) *models.Character {
	t.Helper()
	c, err := e.svc.Characters.Create(context.Background(), models.CharacterRequest{Name: name, AvatarURL: "https://cdn.test/" + name + ".png"})
	require.NoError(t, err)
	return c
}

func (e *env) status(t *testing.T, characterID string, withImage bool) *models.Status {
	t.Helper()
	s, err := e.svc.Statuses.Create(context.Background(), models.StatusRequest{
		CharacterID: characterID, Title: "t", Mood: models.MoodCalm, Description: "d",
	})
	require.NoError(t, err)
	if withImage {
		img := "https://cdn.test/start.png"
		s.StartingImageURL = &img
		require.NoError(t, e.repos.Statuses.Save(context.Background(), s))
	}
	return s
}

func (e *env) reload(t *testing.T, id string) *models.Status {
	t.Helper()
	s, err := e.repos.Statuses.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestSetDefaultSwitchesDefault(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.character(t, "mira")
	a := e.status(t, c.ID, true)
	b := e.status(t, c.ID, true)
	_, err := e.svc.Statuses.SetDefault(ctx, a.ID)
	require.NoError(t, err)

	got, err := e.svc.Statuses.SetDefault(ctx, b.ID)
	require.NoError(t, err)

	assert.True(t, got.IsDefault)
	assert.False(t, e.reload(t, a.ID).IsDefault)
	assert.True(t, e.reload(t, b.ID).IsDefault)
}

func TestSetDefaultIsNotAtomic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.character(t, "mira")
	a := e.status(t, c.ID, true)
	b := e.status(t, c.ID, true)
	_, err := e.svc.Statuses.SetDefault(ctx, a.ID)
	require.NoError(t, err)

	e.mem.FailNext("Statuses.MarkDefault", errors.New("connection reset"))
	_, err = e.svc.Statuses.SetDefault(ctx, b.ID)

	require.Error(t, err)
	assert.False(t, e.reload(t, a.ID).IsDefault, "first write already applied")
	assert.False(t, e.reload(t, b.ID).IsDefault)
}

func TestSetDefaultLeavesOtherCharacters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.status(t, e.character(t, "mira").ID, true)
	b := e.status(t, e.character(t, "zed").ID, true)

	_, err := e.svc.Statuses.SetDefault(ctx, a.ID)
	require.NoError(t, err)
	_, err = e.svc.Statuses.SetDefault(ctx, b.ID)
	require.NoError(t, err)

	assert.True(t, e.reload(t, a.ID).IsDefault)
	assert.True(t, e.reload(t, b.ID).IsDefault)
}

func TestCreateStatusValidates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.character(t, "mira")

	_, err := e.svc.Statuses.Create(ctx, models.StatusRequest{CharacterID: c.ID, Mood: "grumpy"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = e.svc.Statuses.Create(ctx, models.StatusRequest{CharacterID: "7f1f9b8e-0000-4000-8000-000000000000", Mood: models.MoodSad})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	s, err := e.svc.Statuses.Create(ctx, models.StatusRequest{CharacterID: c.ID, Mood: models.MoodSad})
	require.NoError(t, err)
	assert.Equal(t, models.GenerationDraft, s.GenerationStatus)
	assert.Equal(t, models.StepBasicInfo, s.GenerationStep)
}

func TestUpdateStatusDropsOpenEditor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.character(t, "mira")
	s := e.status(t, c.ID, false)

	ed, err := e.svc.Statuses.Editor(ctx, s.ID)
	require.NoError(t, err)
	_, err = e.svc.Statuses.Update(ctx, s.ID, models.StatusRequest{CharacterID: c.ID, Title: "new", Mood: models.MoodHappy, Description: "d2"})
	require.NoError(t, err)

	reopened, err := e.svc.Statuses.Editor(ctx, s.ID)
	require.NoError(t, err)
	assert.NotSame(t, ed, reopened)
	assert.Equal(t, "new", reopened.Snapshot().Status.Title)
}

func TestDeleteCharacterCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.character(t, "mira")
	s := e.status(t, c.ID, false)

	require.NoError(t, e.svc.Characters.Delete(ctx, c.ID))

	_, err := e.svc.Statuses.Get(ctx, s.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteCharacterDropsOpenEditors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.character(t, "mira")
	other := e.character(t, "zed")
	s := e.status(t, c.ID, true)
	kept := e.status(t, other.ID, true)

	_, err := e.svc.Statuses.Editor(ctx, s.ID)
	require.NoError(t, err)
	_, err = e.svc.Statuses.Editor(ctx, kept.ID)
	require.NoError(t, err)
	require.Equal(t, 2, e.sessions.Len())

	require.NoError(t, e.svc.Characters.Delete(ctx, c.ID))

	assert.Equal(t, 1, e.sessions.Len())
	_, err = e.svc.Statuses.Editor(ctx, s.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = e.svc.Statuses.Editor(ctx, kept.ID)
	assert.NoError(t, err)
}

func TestUploadAvatar(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.character(t, "mira")

	_, err := e.svc.Characters.UploadAvatar(ctx, c.ID, File{Filename: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrInvalid)

	got, err := e.svc.Characters.UploadAvatar(ctx, c.ID, File{Filename: "face.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpg")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.AvatarURL, "https://files.test/avatars/"))
	assert.Equal(t, 1, e.files.Len())
}

func TestAssetUploadAndDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	asset, err := e.svc.Assets.Upload(ctx, "", "backgrounds", File{Filename: "beach.png", ContentType: "image/png", Body: strings.NewReader("12345")})
	require.NoError(t, err)
	assert.Equal(t, "beach.png", asset.Name)
	assert.Equal(t, int64(5), asset.SizeBytes)
	data, ok := e.files.Get(storage.BucketAssets, asset.StoragePath)
	require.True(t, ok)
	assert.Equal(t, "12345", string(data))

	list, err := e.svc.Assets.List(ctx, repository.ListOptions{Category: "backgrounds"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, e.svc.Assets.Delete(ctx, asset.ID))
	assert.Zero(t, e.files.Len())
}

func TestLookItemLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tpl := e.svc.Templates

	for _, bad := range []string{"", "Beach", "-beach", "beach day", "été"} {
		_, err := tpl.Create(ctx, models.LookItemRequest{ID: bad, Name: "x", Prompt: "p"})
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}

	a, err := tpl.Create(ctx, models.LookItemRequest{ID: "beach", Name: "Beach", Prompt: "on a beach"})
	require.NoError(t, err)
	b, err := tpl.Create(ctx, models.LookItemRequest{ID: "city_night", Name: "City", Prompt: "neon city", NegativePrompt: "blurry"})
	require.NoError(t, err)
	assert.Equal(t, 10, a.DisplayOrder)
	assert.Equal(t, 20, b.DisplayOrder)
	assert.True(t, a.Enabled)
	assert.Equal(t, "blurry", b.Prompt.Data().NegativePrompt)

	items, err := tpl.Reorder(ctx, []string{"city_night", "beach"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "city_night", items[0].ID)
	assert.Equal(t, 10, items[0].DisplayOrder)
	assert.Equal(t, 20, items[1].DisplayOrder)

	_, err = tpl.Update(ctx, "beach", models.LookItemRequest{ID: "shore", Name: "x", Prompt: "p"})
	assert.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, tpl.Delete(ctx, "beach"))
	_, err = tpl.Get(ctx, "beach")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = tpl.Create(ctx, models.LookItemRequest{ID: "beach", Name: "Beach", Prompt: "again"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestLookItemImagesOnlyForTemplates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	path := "https://cdn.test/look.png"

	_, err := e.svc.Transformations.Create(ctx, models.LookItemRequest{ID: "anime", Name: "Anime", Prompt: "p", ImagePath: &path})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = e.svc.Transformations.Create(ctx, models.LookItemRequest{ID: "anime", Name: "Anime", Prompt: "p"})
	require.NoError(t, err)
	_, err = e.svc.Transformations.UploadImage(ctx, "anime", File{Filename: "a.png", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = e.svc.Templates.Create(ctx, models.LookItemRequest{ID: "beach", Name: "Beach", Prompt: "p"})
	require.NoError(t, err)
	item, err := e.svc.Templates.UploadImage(ctx, "beach", File{Filename: "a.png", ContentType: "image/png", Body: strings.NewReader("x")})
	require.NoError(t, err)
	require.NotNil(t, item.ImagePath)
	assert.Contains(t, *item.ImagePath, "/look-images/")

	_, err = e.svc.Transformations.Get(ctx, "beach")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDashboardCounts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.character(t, "mira")
	e.status(t, c.ID, false)
	done := e.status(t, c.ID, true)
	done.GenerationStep = models.StepVideosReady
	done.GenerationStatus = models.GenerationCompleted
	require.NoError(t, e.repos.Statuses.Save(ctx, done))
	_, err := e.svc.Prompts.Create(ctx, models.PromptRequest{Name: "p", Content: "c"})
	require.NoError(t, err)
	_, err = e.svc.Templates.Create(ctx, models.LookItemRequest{ID: "beach", Name: "b", Prompt: "p"})
	require.NoError(t, err)

	counts, err := e.svc.Dashboard.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Counts{Characters: 1, Statuses: 2, CompletedStatuses: 1, Prompts: 1, Templates: 1}, *counts)

	e.mem.FailNext("Assets.Count", errors.New("timeout"))
	_, err = e.svc.Dashboard.Counts(ctx)
	assert.Error(t, err)
}

func TestFeedIsCachedAndInvalidated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	mira := e.character(t, "mira")
	e.character(t, "zed")
	a := e.status(t, mira.ID, true)
	draft := e.status(t, mira.ID, false)

	_, err := e.svc.Statuses.SetDefault(ctx, draft.ID)
	require.NoError(t, err)
	feed, err := e.svc.Feed.Feed(ctx)
	require.NoError(t, err)
	assert.Empty(t, feed, "defaults without a starting image are hidden")

	_, err = e.svc.Statuses.SetDefault(ctx, a.ID)
	require.NoError(t, err)
	feed, err = e.svc.Feed.Feed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "mira", feed[0].Character.Name)
	assert.Equal(t, a.ID, feed[0].Status.ID)

	calls := e.mem.Calls("Statuses.Defaults")
	_, err = e.svc.Feed.Feed(ctx)
	require.NoError(t, err)
	assert.Equal(t, calls, e.mem.Calls("Statuses.Defaults"), "second read is served from cache")
}

func TestEditorSaveRefreshesFeed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.character(t, "mira")
	s := e.status(t, c.ID, false)
	_, err := e.svc.Statuses.SetDefault(ctx, s.ID)
	require.NoError(t, err)

	feed, err := e.svc.Feed.Feed(ctx)
	require.NoError(t, err)
	require.Empty(t, feed)

	ed, err := e.svc.Statuses.Editor(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, ed.UploadStartingImage(ctx, workflow.Upload{
		Filename: "frame.png", ContentType: "image/png", Body: strings.NewReader("png"),
	}))

	feed, err = e.svc.Feed.Feed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, s.ID, feed[0].Status.ID)
	assert.True(t, strings.HasPrefix(*feed[0].Status.StartingImageURL, "https://files.test/status-media/"))
}

func TestOnboardingPutAndSteps(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := e.svc.Onboarding

	steps, err := svc.Steps(ctx)
	require.NoError(t, err)
	require.Len(t, steps, len(onboarding.Steps))
	assert.Equal(t, onboarding.StepWelcome, steps[0].ID)
	assert.Equal(t, onboarding.StepEntry, steps[6].ID)

	_, err = svc.Put(ctx, onboarding.StepEntry, []byte(`{"title":"x","prompt":"y","grace_ms":100,"extra":1}`))
	assert.ErrorIs(t, err, onboarding.ErrInvalidConfig)
	_, err = svc.Put(ctx, "tutorial", []byte(`{}`))
	assert.ErrorIs(t, err, onboarding.ErrUnknownStep)

	_, err = svc.Put(ctx, onboarding.StepEntry, []byte(`{"title":"Ready","prompt":"Tap","grace_ms":250}`))
	require.NoError(t, err)

	steps, err = svc.Steps(ctx)
	require.NoError(t, err)
	var entry onboarding.EntryConfig
	require.NoError(t, json.Unmarshal(steps[6].Config, &entry))
	assert.Equal(t, onboarding.EntryConfig{Title: "Ready", Prompt: "Tap", GraceMS: 250}, entry)
}

func TestBackfillFixesDerivedStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.character(t, "mira")
	broken := e.status(t, c.ID, true)
	broken.GenerationStep = models.StepVideosReady
	broken.GenerationStatus = models.GenerationDraft
	require.NoError(t, e.repos.Statuses.Save(ctx, broken))
	external := e.status(t, c.ID, false)
	external.GenerationStatus = models.GenerationFailed
	require.NoError(t, e.repos.Statuses.Save(ctx, external))
	e.status(t, c.ID, false)

	fixed, err := e.svc.Statuses.Backfill(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, fixed)
	assert.Equal(t, models.GenerationCompleted, e.reload(t, broken.ID).GenerationStatus)
	assert.Equal(t, models.GenerationFailed, e.reload(t, external.ID).GenerationStatus)
}

package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"character-studio/backend/internal/generation"
	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/storage"
	"character-studio/backend/pkg/logger"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{}
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	mem       *repository.Memory
	repos     *repository.Repositories
	gen       *generation.Fake
	files     *storage.MemoryStorage
	events    *recorder
	character *models.Character
	status    *models.Status
	opts      Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := repository.NewMemory()
	repos := mem.Repositories()

	character := &models.Character{Name: "Mira", Description: "surfer", AvatarURL: "https://cdn.test/mira.png"}
	require.NoError(t, repos.Characters.Create(ctx, character))

	status := &models.Status{
		CharacterID: character.ID,
		Title:       "Beach day",
		Mood:        models.MoodHappy,
		Description: "catching waves at sunrise",
	}
	require.NoError(t, repos.Statuses.Create(ctx, status))

	return &fixture{
		mem:   mem,
		repos: repos,
		gen: &generation.Fake{
			Text: &generation.TextResult{
				Overlays:    models.Overlays{Now: "surfing", Health: "salty"},
				Suggestions: []string{"nice!", "where?"},
				VideoScenes: []string{"paddling out", "riding a wave", "wiping out", "sunset"},
			},
			Image: &generation.ImageResult{ImageURL: "https://cdn.test/start.png"},
		},
		files:     storage.NewMemoryStorage("https://files.test"),
		events:    &recorder{},
		character: character,
		status:    status,
		opts:      DefaultOptions(),
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Store:      f.repos.Statuses,
		Characters: f.repos.Characters,
		Generator:  f.gen,
		Uploader:   f.files,
		Notifier:   f.events,
		Options:    f.opts,
		Logger:     logger.Discard(),
	}
}

func (f *fixture) editor(t *testing.T) *Editor {
	t.Helper()
	s, err := f.repos.Statuses.Get(context.Background(), f.status.ID)
	require.NoError(t, err)
	return NewEditor(s, f.deps())
}

func (f *fixture) stored(t *testing.T) *models.Status {
	t.Helper()
	s, err := f.repos.Statuses.Get(context.Background(), f.status.ID)
	require.NoError(t, err)
	return s
}

// seed writes a status that already went through the image step
func (f *fixture) seed(t *testing.T, step int, playlist ...models.PlaylistEntry) {
	t.Helper()
	s := f.stored(t)
	img := "https://cdn.test/start.png"
	s.StartingImageURL = &img
	s.VideoScenes = []string{"paddling out", "riding a wave", "wiping out", "sunset"}
	s.VideosPlaylist = playlist
	s.GenerationStep = step
	require.NoError(t, f.repos.Statuses.Save(context.Background(), s))
}

func entry(scene int, url string) models.PlaylistEntry {
	return models.PlaylistEntry{SceneIndex: scene, VideoURL: url, ScenePrompt: "scene", Duration: 5}
}

func TestGenerateTextReplacesManualEdits(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)
	ed.SetOverlays(models.Overlays{Now: "typed by hand"})
	ed.SetSuggestions([]string{"old"})
	require.NoError(t, ed.SetScenes([]string{"manual scene"}))

	require.NoError(t, ed.GenerateText(context.Background()))

	got := f.stored(t)
	assert.Equal(t, models.StepTextGenerated, got.GenerationStep)
	assert.Equal(t, models.GenerationDraft, got.GenerationStatus)
	assert.Equal(t, models.Overlays{Now: "surfing", Health: "salty"}, got.Overlays())
	assert.Equal(t, []string{"nice!", "where?"}, []string(got.SuggestionsList))
	assert.Equal(t, []string{"paddling out", "riding a wave", "wiping out", "sunset"}, []string(got.VideoScenes))

	require.Len(t, f.gen.TextCalls, 1)
	assert.Equal(t, "catching waves at sunrise", f.gen.TextCalls[0].Description)
	assert.Equal(t, "Mira", f.gen.TextCalls[0].CharacterName)
	assert.Equal(t, 4, f.gen.TextCalls[0].SceneCount)
	assert.Equal(t, []string{EventActionCompleted}, f.events.types())
}

func TestGenerateTextValidatesBeforeCalling(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)
	empty := "  "
	require.NoError(t, ed.UpdateBasicInfo(BasicInfo{Description: &empty}))

	err := ed.GenerateText(context.Background())

	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "description is required")
	text, _, _ := f.gen.Calls()
	assert.Zero(t, text)
	assert.Zero(t, f.mem.Calls("Statuses.Save"))
}

func TestGenerateTextFailureLeavesContent(t *testing.T) {
	f := newFixture(t)
	f.gen.TextErr = &generation.Error{Op: "generate-text", StatusCode: 500, Message: "model down"}
	ed := f.editor(t)
	ed.SetOverlays(models.Overlays{Now: "draft caption"})

	err := ed.GenerateText(context.Background())

	require.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "model down")
	view := ed.Snapshot()
	assert.Equal(t, models.StepBasicInfo, view.Status.GenerationStep)
	assert.Equal(t, "draft caption", view.Status.Overlays().Now)
	assert.Empty(t, view.Busy)
	assert.Zero(t, f.mem.Calls("Statuses.Save"))
	assert.Equal(t, []string{EventActionFailed}, f.events.types())
}

func TestGenerationRunsDetachedFromCaller(t *testing.T) {
	f := newFixture(t)
	f.gen.Gate = make(chan struct{})
	ed := f.editor(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ed.GenerateText(ctx) }()

	require.Eventually(t, func() bool {
		text, _, _ := f.gen.Calls()
		return text == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	f.gen.Gate <- struct{}{}

	require.NoError(t, <-done)
	assert.Equal(t, models.StepTextGenerated, f.stored(t).GenerationStep)
}

func TestBusyBlocksOnlyTheSameAction(t *testing.T) {
	f := newFixture(t)
	f.gen.Gate = make(chan struct{})
	ed := f.editor(t)

	done := make(chan error, 1)
	go func() { done <- ed.GenerateText(context.Background()) }()
	require.Eventually(t, func() bool {
		text, _, _ := f.gen.Calls()
		return text == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{ActionGenerateText}, ed.Snapshot().Busy)
	assert.ErrorIs(t, ed.GenerateText(context.Background()), ErrBusy)
	assert.NoError(t, ed.Persist(context.Background()))

	f.gen.Gate <- struct{}{}
	require.NoError(t, <-done)
	assert.Empty(t, ed.Snapshot().Busy)
}

func TestGenerateStartingImageUsesFirstScene(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)
	require.NoError(t, ed.SetScenes([]string{"", "riding a wave"}))
	assert.Equal(t, 1, ed.FirstSceneIndex())

	require.NoError(t, ed.GenerateStartingImage(context.Background(), -1))

	require.Len(t, f.gen.ImageCalls, 1)
	assert.Equal(t, "riding a wave", f.gen.ImageCalls[0].Scene)
	assert.Equal(t, "https://cdn.test/mira.png", f.gen.ImageCalls[0].ReferenceImageURL)
	got := f.stored(t)
	require.True(t, got.HasStartingImage())
	assert.Equal(t, "https://cdn.test/start.png", *got.StartingImageURL)
	assert.Equal(t, models.StepImageGenerated, got.GenerationStep)
}

func TestGenerateStartingImageNeedsAvatar(t *testing.T) {
	f := newFixture(t)
	f.character.AvatarURL = ""
	require.NoError(t, f.repos.Characters.Update(context.Background(), f.character))
	ed := f.editor(t)
	require.NoError(t, ed.SetScenes([]string{"scene"}))

	err := ed.GenerateStartingImage(context.Background(), 0)

	require.ErrorIs(t, err, ErrValidation)
	_, image, _ := f.gen.Calls()
	assert.Zero(t, image)
}

func TestUploadStartingImageConverges(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)

	err := ed.UploadStartingImage(context.Background(), Upload{
		Filename: "frame.PNG", ContentType: "image/png", Body: strings.NewReader("png"),
	})
	require.NoError(t, err)

	got := f.stored(t)
	require.True(t, got.HasStartingImage())
	assert.True(t, strings.HasPrefix(*got.StartingImageURL, "https://files.test/status-media/"))
	assert.True(t, strings.HasSuffix(*got.StartingImageURL, ".png"))
	assert.Equal(t, models.StepImageGenerated, got.GenerationStep)
	assert.Equal(t, 1, f.files.Len())
}

func TestGenerateSceneVideoAppendsAndCompletes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.StepImageGenerated)
	ed := f.editor(t)

	require.NoError(t, ed.GenerateSceneVideo(context.Background(), 2))

	got := f.stored(t)
	require.Len(t, got.VideosPlaylist, 1)
	assert.Equal(t, 2, got.VideosPlaylist[0].SceneIndex)
	assert.Equal(t, "wiping out", got.VideosPlaylist[0].ScenePrompt)
	assert.Equal(t, 5, got.VideosPlaylist[0].Duration)
	assert.Equal(t, models.StepVideosReady, got.GenerationStep)
	assert.Equal(t, models.GenerationCompleted, got.GenerationStatus)
	assert.Equal(t, "https://cdn.test/start.png", f.gen.VideoCalls[0].ImageURL)
}

func TestGenerateSceneVideoPreconditions(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)
	require.NoError(t, ed.SetScenes([]string{"scene"}))
	assert.ErrorIs(t, ed.GenerateSceneVideo(context.Background(), 0), ErrValidation)

	f.seed(t, models.StepImageGenerated)
	ed = f.editor(t)
	assert.ErrorIs(t, ed.GenerateSceneVideo(context.Background(), 4), ErrValidation)
	assert.ErrorIs(t, ed.GenerateSceneVideo(context.Background(), -1), ErrValidation)

	_, _, video := f.gen.Calls()
	assert.Zero(t, video)
}

func TestGenerateSceneVideoDuplicatePolicy(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.StepVideosReady, entry(1, "a.mp4"))

	err := f.editor(t).GenerateSceneVideo(context.Background(), 1)
	require.ErrorIs(t, err, ErrSceneGenerated)

	f.opts.AllowDuplicateSceneVideos = true
	require.NoError(t, f.editor(t).GenerateSceneVideo(context.Background(), 1))
	assert.Len(t, f.stored(t).VideosPlaylist, 2)
}

func TestSceneControlsDisableOnlyInRangeIndexes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.StepVideosReady, entry(1, "a.mp4"), entry(7, "manual.mp4"), entry(-1, "odd.mp4"))

	controls := f.editor(t).SceneControls()

	require.Len(t, controls, 4)
	for _, c := range controls {
		assert.Equal(t, c.Index == 1, c.Generated, "scene %d", c.Index)
		assert.Equal(t, c.Index == 1, c.Disabled, "scene %d", c.Index)
	}
}

func TestSceneControlsWithoutStartingImage(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)
	require.NoError(t, ed.SetScenes([]string{"a", "b"}))

	for _, c := range ed.SceneControls() {
		assert.True(t, c.Disabled)
		assert.False(t, c.Generated)
	}
}

func TestUploadVideoUsesSyntheticIndex(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.StepImageGenerated, entry(0, "a.mp4"), entry(1, "b.mp4"))
	ed := f.editor(t)

	require.NoError(t, ed.UploadVideo(context.Background(), Upload{
		Filename: "clip.mp4", ContentType: "video/mp4", Body: strings.NewReader("mp4"),
	}))

	got := f.stored(t)
	require.Len(t, got.VideosPlaylist, 3)
	last := got.VideosPlaylist[2]
	assert.Equal(t, 2, last.SceneIndex)
	assert.Equal(t, models.ManualUploadPrompt, last.ScenePrompt)
	assert.Equal(t, 5, last.Duration)
	assert.Equal(t, models.StepVideosReady, got.GenerationStep)
}

func TestUploadVideoNeedsStartingImage(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)

	err := ed.UploadVideo(context.Background(), Upload{
		Filename: "clip.mp4", ContentType: "video/mp4", Body: strings.NewReader("mp4"),
	})

	require.ErrorIs(t, err, ErrValidation)
	got := f.stored(t)
	assert.Equal(t, models.StepBasicInfo, got.GenerationStep)
	assert.NotEqual(t, models.GenerationCompleted, got.GenerationStatus)
	assert.Empty(t, got.VideosPlaylist)
	assert.Zero(t, f.files.Len())
	assert.Empty(t, f.events.types())
}

func TestUploadStartingImageRejectsNonImage(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)

	err := ed.UploadStartingImage(context.Background(), Upload{
		Filename: "clip.mp4", ContentType: "video/mp4", Body: strings.NewReader("mp4"),
	})

	require.ErrorIs(t, err, ErrValidation)
	assert.False(t, f.stored(t).HasStartingImage())
	assert.Zero(t, f.files.Len())
}

func TestUploadFailureReported(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.StepImageGenerated)
	f.files.Err = errors.New("bucket offline")
	ed := f.editor(t)

	err := ed.UploadVideo(context.Background(), Upload{Filename: "clip.mp4", Body: strings.NewReader("x")})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Empty(t, ed.Snapshot().Status.VideosPlaylist)
	assert.Equal(t, []string{EventActionFailed}, f.events.types())
}

func TestMoveVideoPersistsOnce(t *testing.T) {
	f := newFixture(t)
	a, b, c := entry(0, "a.mp4"), entry(1, "b.mp4"), entry(2, "c.mp4")
	f.seed(t, models.StepVideosReady, a, b, c)
	ed := f.editor(t)
	before := f.mem.Calls("Statuses.Save")

	require.NoError(t, ed.MoveVideo(context.Background(), 0, 2))

	want := []models.PlaylistEntry{b, c, a}
	if diff := cmp.Diff(want, []models.PlaylistEntry(f.stored(t).VideosPlaylist)); diff != "" {
		t.Errorf("stored playlist mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, before+1, f.mem.Calls("Statuses.Save"))
}

func TestMoveVideoKeepsLocalOrderWhenSaveFails(t *testing.T) {
	f := newFixture(t)
	a, b := entry(0, "a.mp4"), entry(1, "b.mp4")
	f.seed(t, models.StepVideosReady, a, b)
	ed := f.editor(t)
	f.mem.FailNext("Statuses.Save", errors.New("connection reset"))

	err := ed.MoveVideo(context.Background(), 1, 0)

	require.Error(t, err)
	assert.Equal(t, []models.PlaylistEntry{b, a}, []models.PlaylistEntry(ed.Snapshot().Status.VideosPlaylist))
	assert.Equal(t, []models.PlaylistEntry{a, b}, []models.PlaylistEntry(f.stored(t).VideosPlaylist))
	assert.Equal(t, []string{EventSaveFailed}, f.events.types())
}

func TestMoveVideoRejectsBadIndexes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.StepVideosReady, entry(0, "a.mp4"))
	ed := f.editor(t)
	before := f.mem.Calls("Statuses.Save")

	assert.ErrorIs(t, ed.MoveVideo(context.Background(), 0, 1), ErrValidation)
	assert.ErrorIs(t, ed.RemoveVideo(context.Background(), 3), ErrValidation)
	assert.Equal(t, before, f.mem.Calls("Statuses.Save"))
}

func TestRemoveVideoKeepsOrderAndScenes(t *testing.T) {
	f := newFixture(t)
	a, b, c := entry(0, "a.mp4"), entry(1, "b.mp4"), entry(2, "c.mp4")
	f.seed(t, models.StepVideosReady, a, b, c)
	ed := f.editor(t)

	require.NoError(t, ed.RemoveVideo(context.Background(), 1))

	got := f.stored(t)
	assert.Equal(t, []models.PlaylistEntry{a, c}, []models.PlaylistEntry(got.VideosPlaylist))
	assert.Equal(t, []string{"paddling out", "riding a wave", "wiping out", "sunset"}, []string(got.VideoScenes))
}

func TestSaveDerivesGenerationStatus(t *testing.T) {
	for step, want := range map[int]models.GenerationStatus{
		models.StepBasicInfo:      models.GenerationDraft,
		models.StepTextGenerated:  models.GenerationDraft,
		models.StepImageGenerated: models.GenerationDraft,
		models.StepVideosReady:    models.GenerationCompleted,
	} {
		f := newFixture(t)
		f.seed(t, step)
		ed := f.editor(t)

		require.NoError(t, ed.PersistSilently(context.Background()))
		assert.Equal(t, want, f.stored(t).GenerationStatus, "step %d", step)
	}
}

func TestPersistNotifiesSilentDoesNot(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)

	require.NoError(t, ed.PersistSilently(context.Background()))
	assert.Empty(t, f.events.types())

	require.NoError(t, ed.Persist(context.Background()))
	assert.Equal(t, []string{EventSaved}, f.events.types())
}

func TestPersistDoesNotTouchDefaultFlag(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)
	require.NoError(t, f.repos.Statuses.MarkDefault(context.Background(), f.status.ID))

	require.NoError(t, ed.Persist(context.Background()))
	assert.True(t, f.stored(t).IsDefault)
}

func TestGoToNeverLowersStep(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.StepImageGenerated)
	ed := f.editor(t)

	require.NoError(t, ed.GoTo(context.Background(), models.StepBasicInfo))

	view := ed.Snapshot()
	assert.Equal(t, models.StepBasicInfo, view.ViewStep)
	assert.Equal(t, models.StepImageGenerated, view.Status.GenerationStep)
	assert.Equal(t, models.StepImageGenerated, f.stored(t).GenerationStep)
	assert.ErrorIs(t, ed.GoTo(context.Background(), models.StepVideosReady), ErrValidation)
}

func TestUpdateBasicInfoRejectsUnknownMood(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)

	assert.ErrorIs(t, ed.UpdateBasicInfo(BasicInfo{Mood: "grumpy"}), ErrValidation)
	assert.ErrorIs(t, ed.SetScenes(make([]string, 5)), ErrValidation)
}

func TestApplyChangesNothingOnError(t *testing.T) {
	f := newFixture(t)
	ed := f.editor(t)
	title := "Night swim"

	err := ed.Apply(Edit{
		BasicInfo:   &BasicInfo{Title: &title},
		Overlays:    &models.Overlays{Now: "swimming"},
		Suggestions: []string{"brr"},
		Scenes:      make([]string, 5),
	})

	require.ErrorIs(t, err, ErrValidation)
	got := ed.Snapshot().Status
	assert.Equal(t, "Beach day", got.Title)
	assert.Empty(t, got.Overlays().Now)
	assert.Empty(t, got.SuggestionsList)

	require.NoError(t, ed.Apply(Edit{BasicInfo: &BasicInfo{Title: &title}, Scenes: []string{"dive"}}))
	got = ed.Snapshot().Status
	assert.Equal(t, title, got.Title)
	assert.Equal(t, []string{"dive"}, []string(got.VideoScenes))
}

package workflow

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"character-studio/backend/internal/generation"
	"character-studio/backend/internal/models"
	"character-studio/backend/internal/storage"
	"character-studio/backend/pkg/logger"

	"gorm.io/datatypes"
)

// Action names, also used as busy keys
const (
	ActionGenerateText  = "generate_text"
	ActionGenerateImage = "generate_image"
	ActionUploadImage   = "upload_image"
	ActionGenerateVideo = "generate_video"
	ActionUploadVideo   = "upload_video"
	ActionRemoveVideo   = "remove_video"
	ActionMoveVideo     = "move_video"
	ActionSave          = "save"
)

// Editor holds the working copy of one status. The mutex guards the working
// copy and busy flags and is never held across a remote call.
type Editor struct {
	mu       sync.Mutex
	status   *models.Status
	viewStep int
	busy     map[string]bool

	deps    Deps
	log     *logger.Logger
	metrics *instruments
}

// NewEditor starts editing a copy of status
func NewEditor(status *models.Status, deps Deps) *Editor {
	if deps.Notifier == nil {
		deps.Notifier = discardNotifier
	}
	if deps.Logger == nil {
		deps.Logger = logger.GetGlobal()
	}
	if deps.Options.SceneCount <= 0 {
		deps.Options.SceneCount = DefaultOptions().SceneCount
	}
	if deps.Options.VideoDuration <= 0 {
		deps.Options.VideoDuration = DefaultOptions().VideoDuration
	}

	working := status.Clone()
	working.Normalize()
	return &Editor{
		status:   working,
		viewStep: working.GenerationStep,
		busy:     map[string]bool{},
		deps:     deps,
		log:      deps.Logger.With("status_id", status.ID),
		metrics:  newInstruments(),
	}
}

// ID returns the status id being edited
func (e *Editor) ID() string {
	return e.status.ID
}

// Snapshot returns a copy of the working state
func (e *Editor) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

func (e *Editor) viewLocked() View {
	busy := make([]string, 0, len(e.busy))
	for k := range e.busy {
		busy = append(busy, k)
	}
	sort.Strings(busy)
	return View{
		Status:   e.status.Clone(),
		ViewStep: e.viewStep,
		Scenes:   e.sceneControlsLocked(),
		Busy:     busy,
	}
}

// SceneControls reports, per scene, whether its generate control is enabled
func (e *Editor) SceneControls() []SceneControl {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sceneControlsLocked()
}

func (e *Editor) sceneControlsLocked() []SceneControl {
	generated := generatedScenes(e.status)
	hasImage := e.status.HasStartingImage()
	out := make([]SceneControl, len(e.status.VideoScenes))
	for i, scene := range e.status.VideoScenes {
		c := SceneControl{
			Index:     i,
			Scene:     scene,
			Generated: generated[i],
			Busy:      e.busy[videoKey(i)],
		}
		c.Disabled = c.Busy || !hasImage || strings.TrimSpace(scene) == "" ||
			(c.Generated && !e.deps.Options.AllowDuplicateSceneVideos)
		out[i] = c
	}
	return out
}

// FirstSceneIndex is the default scene for the starting image, -1 when every
// scene is empty
func (e *Editor) FirstSceneIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return firstSceneIndex(e.status.VideoScenes)
}

// acquire marks key busy. The returned func clears it.
func (e *Editor) acquire(key string) (func(), error) {
	if e.busy[key] {
		return nil, fmt.Errorf("%w: %s", ErrBusy, key)
	}
	e.busy[key] = true
	return func() {
		e.mu.Lock()
		delete(e.busy, key)
		e.mu.Unlock()
	}, nil
}

// advance moves generation_step forward, never back
func (e *Editor) advance(step int) {
	if step > e.status.GenerationStep {
		e.status.GenerationStep = step
	}
	e.viewStep = step
}

// UpdateBasicInfo edits step 0 fields of the working copy
func (e *Editor) UpdateBasicInfo(info BasicInfo) error {
	return e.Apply(Edit{BasicInfo: &info})
}

func (e *Editor) SetOverlays(o models.Overlays) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.SetOverlays(o)
}

func (e *Editor) SetSuggestions(suggestions []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.SuggestionsList = datatypes.JSONSlice[string](slices.Clone(suggestions))
}

// SetScenes replaces the scene texts. At most SceneCount scenes are kept.
func (e *Editor) SetScenes(scenes []string) error {
	return e.Apply(Edit{Scenes: scenes})
}

// Apply changes several working-copy fields at once. Every part is checked
// first; on error nothing is changed.
func (e *Editor) Apply(edit Edit) error {
	if info := edit.BasicInfo; info != nil && info.Mood != "" && !info.Mood.Valid() {
		return fmt.Errorf("%w: unknown mood %q", ErrValidation, info.Mood)
	}
	if len(edit.Scenes) > e.deps.Options.SceneCount {
		return fmt.Errorf("%w: at most %d scenes", ErrValidation, e.deps.Options.SceneCount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if info := edit.BasicInfo; info != nil {
		if info.CharacterID != "" {
			e.status.CharacterID = info.CharacterID
		}
		if info.Title != nil {
			e.status.Title = *info.Title
		}
		if info.Mood != "" {
			e.status.Mood = info.Mood
		}
		if info.Description != nil {
			e.status.Description = *info.Description
		}
	}
	if edit.Overlays != nil {
		e.status.SetOverlays(*edit.Overlays)
	}
	if edit.Suggestions != nil {
		e.status.SuggestionsList = datatypes.JSONSlice[string](slices.Clone(edit.Suggestions))
	}
	if edit.Scenes != nil {
		e.status.VideoScenes = datatypes.JSONSlice[string](slices.Clone(edit.Scenes))
	}
	return nil
}

// GoTo changes the visible step. generation_step is never lowered. The
// working copy is saved silently.
func (e *Editor) GoTo(ctx context.Context, step int) error {
	e.mu.Lock()
	if step < models.StepBasicInfo || step > e.status.GenerationStep {
		top := e.status.GenerationStep
		e.mu.Unlock()
		return fmt.Errorf("%w: step must be between 0 and %d", ErrValidation, top)
	}
	e.viewStep = step
	e.mu.Unlock()

	return e.PersistSilently(ctx)
}

// GenerateText fills overlays, suggestions and scenes from the gateway,
// replacing any manual edits, and advances to step 1
func (e *Editor) GenerateText(ctx context.Context) error {
	e.mu.Lock()
	s := e.status
	var problems []string
	if s.CharacterID == "" {
		problems = append(problems, "character is required")
	}
	if !s.Mood.Valid() {
		problems = append(problems, "mood is required")
	}
	if strings.TrimSpace(s.Description) == "" {
		problems = append(problems, "description is required")
	}
	if len(problems) > 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, ", "))
	}
	release, err := e.acquire(ActionGenerateText)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	characterID, mood, description := s.CharacterID, s.Mood, s.Description
	e.mu.Unlock()
	defer release()

	ctx = context.WithoutCancel(ctx)
	character, err := e.deps.Characters.Get(ctx, characterID)
	if err != nil {
		return e.fail(ctx, ActionGenerateText, nil, fmt.Errorf("load character: %w", err))
	}

	res, err := e.deps.Generator.GenerateText(ctx, generation.TextRequest{
		Description:          description,
		Mood:                 mood,
		SceneCount:           e.deps.Options.SceneCount,
		CharacterName:        character.Name,
		CharacterDescription: character.Description,
	})
	if err != nil {
		return e.fail(ctx, ActionGenerateText, nil, fmt.Errorf("%w: text: %w", ErrGeneration, err))
	}

	e.mu.Lock()
	e.status.SetOverlays(res.Overlays)
	e.status.SuggestionsList = datatypes.JSONSlice[string](res.Suggestions)
	e.status.VideoScenes = datatypes.JSONSlice[string](res.VideoScenes)
	e.advance(models.StepTextGenerated)
	e.mu.Unlock()

	return e.complete(ctx, ActionGenerateText, nil)
}

// GenerateStartingImage renders the starting frame from the character's
// avatar and one scene. A negative sceneIndex selects the first non-empty scene.
func (e *Editor) GenerateStartingImage(ctx context.Context, sceneIndex int) error {
	e.mu.Lock()
	if sceneIndex < 0 {
		sceneIndex = firstSceneIndex(e.status.VideoScenes)
	}
	scene, err := e.sceneLocked(sceneIndex)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	release, err := e.acquire(ActionGenerateImage)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	characterID, mood := e.status.CharacterID, e.status.Mood
	e.mu.Unlock()
	defer release()

	ctx = context.WithoutCancel(ctx)
	character, err := e.deps.Characters.Get(ctx, characterID)
	if err != nil {
		return e.fail(ctx, ActionGenerateImage, nil, fmt.Errorf("load character: %w", err))
	}
	if !character.HasAvatar() {
		return fmt.Errorf("%w: character has no avatar image", ErrValidation)
	}

	res, err := e.deps.Generator.GenerateImage(ctx, generation.ImageRequest{
		ReferenceImageURL: character.AvatarURL,
		Scene:             scene,
		Mood:              mood,
	})
	if err != nil {
		return e.fail(ctx, ActionGenerateImage, nil, fmt.Errorf("%w: image: %w", ErrGeneration, err))
	}

	e.setStartingImage(res.ImageURL)
	return e.complete(ctx, ActionGenerateImage, nil)
}

// UploadStartingImage stores an operator-supplied starting frame. It ends in
// the same state as GenerateStartingImage.
func (e *Editor) UploadStartingImage(ctx context.Context, file Upload) error {
	if !storage.IsImage(file.Filename, file.ContentType) {
		return fmt.Errorf("%w: %s is not an image", ErrValidation, file.Filename)
	}
	e.mu.Lock()
	release, err := e.acquire(ActionUploadImage)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	defer release()

	ctx = context.WithoutCancel(ctx)
	obj, err := e.deps.Uploader.Upload(ctx, storage.BucketStatusMedia, file.Filename, file.Body, file.ContentType)
	if err != nil {
		return e.fail(ctx, ActionUploadImage, nil, fmt.Errorf("upload starting image: %w", err))
	}

	e.setStartingImage(obj.URL)
	return e.complete(ctx, ActionUploadImage, nil)
}

func (e *Editor) setStartingImage(url string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.StartingImageURL = &url
	e.advance(models.StepImageGenerated)
}

// sceneLocked returns the text of a non-empty scene
func (e *Editor) sceneLocked(index int) (string, error) {
	if index < 0 || index >= len(e.status.VideoScenes) {
		return "", fmt.Errorf("%w: no scene at index %d", ErrValidation, index)
	}
	scene := strings.TrimSpace(e.status.VideoScenes[index])
	if scene == "" {
		return "", fmt.Errorf("%w: scene %d is empty", ErrValidation, index)
	}
	return scene, nil
}

// GenerateSceneVideo animates the starting image for one scene and appends
// the result to the playlist
func (e *Editor) GenerateSceneVideo(ctx context.Context, sceneIndex int) error {
	e.mu.Lock()
	if !e.status.HasStartingImage() {
		e.mu.Unlock()
		return fmt.Errorf("%w: starting image is required", ErrValidation)
	}
	scene, err := e.sceneLocked(sceneIndex)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if !e.deps.Options.AllowDuplicateSceneVideos && generatedScenes(e.status)[sceneIndex] {
		e.mu.Unlock()
		return fmt.Errorf("%w: scene %d", ErrSceneGenerated, sceneIndex)
	}
	release, err := e.acquire(videoKey(sceneIndex))
	if err != nil {
		e.mu.Unlock()
		return err
	}
	imageURL, mood := *e.status.StartingImageURL, e.status.Mood
	e.mu.Unlock()
	defer release()

	ctx = context.WithoutCancel(ctx)
	res, err := e.deps.Generator.GenerateVideo(ctx, generation.VideoRequest{
		ImageURL: imageURL,
		Scene:    scene,
		Mood:     mood,
		Duration: e.deps.Options.VideoDuration,
	})
	if err != nil {
		return e.fail(ctx, ActionGenerateVideo, &sceneIndex, fmt.Errorf("%w: video: %w", ErrGeneration, err))
	}

	e.mu.Lock()
	e.status.VideosPlaylist = append(e.status.VideosPlaylist, models.PlaylistEntry{
		SceneIndex:  sceneIndex,
		VideoURL:    res.VideoURL,
		ScenePrompt: scene,
		Duration:    res.Duration,
	})
	e.advance(models.StepVideosReady)
	e.mu.Unlock()

	return e.complete(ctx, ActionGenerateVideo, &sceneIndex)
}

// UploadVideo appends an operator-supplied video. Like generated videos it
// needs a starting image. Its scene index is the playlist length at the time
// the upload lands.
func (e *Editor) UploadVideo(ctx context.Context, file Upload) error {
	e.mu.Lock()
	if !e.status.HasStartingImage() {
		e.mu.Unlock()
		return fmt.Errorf("%w: starting image is required", ErrValidation)
	}
	release, err := e.acquire(ActionUploadVideo)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	defer release()

	ctx = context.WithoutCancel(ctx)
	obj, err := e.deps.Uploader.Upload(ctx, storage.BucketStatusMedia, file.Filename, file.Body, file.ContentType)
	if err != nil {
		return e.fail(ctx, ActionUploadVideo, nil, fmt.Errorf("upload video: %w", err))
	}

	duration := file.Duration
	if duration <= 0 {
		duration = e.deps.Options.VideoDuration
	}

	e.mu.Lock()
	e.status.VideosPlaylist = append(e.status.VideosPlaylist, models.PlaylistEntry{
		SceneIndex:  len(e.status.VideosPlaylist),
		VideoURL:    obj.URL,
		ScenePrompt: models.ManualUploadPrompt,
		Duration:    duration,
	})
	e.advance(models.StepVideosReady)
	e.mu.Unlock()

	return e.complete(ctx, ActionUploadVideo, nil)
}

// RemoveVideo drops one playlist entry and saves. video_scenes is untouched.
func (e *Editor) RemoveVideo(ctx context.Context, index int) error {
	e.mu.Lock()
	list, err := removeEntry(e.status.VideosPlaylist, index)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.status.VideosPlaylist = list
	e.mu.Unlock()

	return e.complete(ctx, ActionRemoveVideo, nil)
}

// MoveVideo reorders the playlist and saves. If the save fails the new order
// stays in the working copy.
func (e *Editor) MoveVideo(ctx context.Context, from, to int) error {
	e.mu.Lock()
	list, err := moveEntry(e.status.VideosPlaylist, from, to)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.status.VideosPlaylist = list
	e.mu.Unlock()

	return e.complete(ctx, ActionMoveVideo, nil)
}

// Persist saves the working copy and reports the outcome to operators
func (e *Editor) Persist(ctx context.Context) error {
	e.mu.Lock()
	release, err := e.acquire(ActionSave)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	defer release()

	step, err := e.write(ctx)
	if err != nil {
		e.deps.Notifier.Notify(ctx, Event{Type: EventSaveFailed, StatusID: e.ID(), Step: step, Message: err.Error()})
		return err
	}
	e.deps.Notifier.Notify(ctx, Event{Type: EventSaved, StatusID: e.ID(), Step: step, Message: "Status saved"})
	return nil
}

// PersistSilently saves the working copy without notifying anyone
func (e *Editor) PersistSilently(ctx context.Context) error {
	_, err := e.write(ctx)
	return err
}

// write stores a full snapshot with generation_status derived from the step
func (e *Editor) write(ctx context.Context) (int, error) {
	e.mu.Lock()
	e.status.GenerationStatus = models.GenerationStatusForStep(e.status.GenerationStep)
	snapshot := e.status.Clone()
	e.mu.Unlock()

	err := e.deps.Store.Save(ctx, snapshot)
	e.metrics.persisted(ctx, err)
	if err != nil {
		e.log.LogError(err, "Failed to save status", "step", snapshot.GenerationStep)
		return snapshot.GenerationStep, fmt.Errorf("save status: %w", err)
	}

	e.mu.Lock()
	e.status.UpdatedAt = snapshot.UpdatedAt
	e.mu.Unlock()
	return snapshot.GenerationStep, nil
}

// complete saves after a successful action
func (e *Editor) complete(ctx context.Context, action string, scene *int) error {
	step, err := e.write(ctx)
	if err != nil {
		e.metrics.action(ctx, action, "save_failed")
		e.deps.Notifier.Notify(ctx, Event{Type: EventSaveFailed, StatusID: e.ID(), Action: action, Step: step, Scene: scene, Message: err.Error()})
		return err
	}
	e.metrics.action(ctx, action, "success")
	e.deps.Notifier.Notify(ctx, Event{Type: EventActionCompleted, StatusID: e.ID(), Action: action, Step: step, Scene: scene})
	return nil
}

// fail reports a failed action. The working copy is left as it was.
func (e *Editor) fail(ctx context.Context, action string, scene *int, err error) error {
	e.log.LogError(err, "Status action failed", "action", action)
	e.metrics.action(ctx, action, "error")

	e.mu.Lock()
	step := e.status.GenerationStep
	e.mu.Unlock()
	e.deps.Notifier.Notify(ctx, Event{Type: EventActionFailed, StatusID: e.ID(), Action: action, Step: step, Scene: scene, Message: err.Error()})
	return err
}

package workflow

import (
	"fmt"
	"slices"
	"strings"

	"character-studio/backend/internal/models"
)

// moveEntry removes the entry at from and inserts it at to
func moveEntry(list []models.PlaylistEntry, from, to int) ([]models.PlaylistEntry, error) {
	if from < 0 || from >= len(list) || to < 0 || to >= len(list) {
		return nil, fmt.Errorf("%w: move %d to %d is outside the playlist of %d", ErrValidation, from, to, len(list))
	}
	out := slices.Clone(list)
	entry := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, entry), nil
}

func removeEntry(list []models.PlaylistEntry, index int) ([]models.PlaylistEntry, error) {
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: no playlist entry at %d", ErrValidation, index)
	}
	return slices.Delete(slices.Clone(list), index, index+1), nil
}

// generatedScenes returns the scene indexes covered by the playlist. Manual
// uploads carry indexes outside the scene range and cover nothing.
func generatedScenes(s *models.Status) map[int]bool {
	out := map[int]bool{}
	for _, e := range s.VideosPlaylist {
		if e.SceneIndex >= 0 && e.SceneIndex < len(s.VideoScenes) {
			out[e.SceneIndex] = true
		}
	}
	return out
}

func firstSceneIndex(scenes []string) int {
	for i, s := range scenes {
		if strings.TrimSpace(s) != "" {
			return i
		}
	}
	return -1
}

func videoKey(scene int) string {
	return fmt.Sprintf("video:%d", scene)
}

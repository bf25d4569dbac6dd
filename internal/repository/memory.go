package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"character-studio/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Memory is an in-process datastore implementing every repository. It
// mirrors the schema's ON DELETE CASCADE from characters to statuses and is
// used by tests and by the server when no database is configured.
type Memory struct {
	mu         sync.Mutex
	characters map[string]models.Character
	statuses   map[string]*models.Status
	prompts    map[string]models.Prompt
	assets     map[string]models.Asset
	lookItems  map[string]models.LookItem
	onboarding map[string]models.OnboardingStep
	failures   map[string]error
	calls      map[string]int
}

// NewMemory returns an empty store
func NewMemory() *Memory {
	return &Memory{
		characters: map[string]models.Character{},
		statuses:   map[string]*models.Status{},
		prompts:    map[string]models.Prompt{},
		assets:     map[string]models.Asset{},
		lookItems:  map[string]models.LookItem{},
		onboarding: map[string]models.OnboardingStep{},
		failures:   map[string]error{},
		calls:      map[string]int{},
	}
}

// Repositories exposes the store through the repository interfaces
func (m *Memory) Repositories() *Repositories {
	return &Repositories{
		Characters: memCharacters{m},
		Statuses:   memStatuses{m},
		Prompts:    memPrompts{m},
		Assets:     memAssets{m},
		LookItems:  memLookItems{m},
		Onboarding: memOnboarding{m},
	}
}

// FailNext makes the next call to op (for example "Statuses.MarkDefault") return err
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// Calls returns how many times op was invoked, including failed calls
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// enter locks the store and consumes an injected failure for op
func (m *Memory) enter(op string) error {
	m.mu.Lock()
	m.calls[op]++
	if err, ok := m.failures[op]; ok {
		delete(m.failures, op)
		return err
	}
	return nil
}

func pageOf[T any](items []T, p int) []T {
	start := ListOptions{Page: p}.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := min(start+PageSize, len(items))
	return items[start:end]
}

func stamp(id *string, created, updated *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	now := time.Now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

type memCharacters struct{ m *Memory }

func (r memCharacters) List(_ context.Context, opts ListOptions) ([]models.Character, error) {
	err := r.m.enter("Characters.List")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]models.Character, 0, len(r.m.characters))
	for _, c := range r.m.characters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return pageOf(out, opts.Page), nil
}

func (r memCharacters) Get(_ context.Context, id string) (*models.Character, error) {
	err := r.m.enter("Characters.Get")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c, ok := r.m.characters[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r memCharacters) Create(_ context.Context, c *models.Character) error {
	err := r.m.enter("Characters.Create")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	r.m.characters[c.ID] = *c
	return nil
}

func (r memCharacters) Update(_ context.Context, c *models.Character) error {
	err := r.m.enter("Characters.Update")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	old, ok := r.m.characters[c.ID]
	if !ok {
		return ErrNotFound
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = time.Now()
	r.m.characters[c.ID] = *c
	return nil
}

func (r memCharacters) Delete(_ context.Context, id string) error {
	err := r.m.enter("Characters.Delete")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.m.characters[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.characters, id)
	for sid, s := range r.m.statuses {
		if s.CharacterID == id {
			delete(r.m.statuses, sid)
		}
	}
	return nil
}

func (r memCharacters) Count(context.Context) (int64, error) {
	err := r.m.enter("Characters.Count")
	defer r.m.mu.Unlock()
	return int64(len(r.m.characters)), err
}

type memStatuses struct{ m *Memory }

func (r memStatuses) match(s *models.Status, f StatusFilter) bool {
	if f.CharacterID != "" && s.CharacterID != f.CharacterID {
		return false
	}
	if f.GenerationStatus != "" && s.GenerationStatus != f.GenerationStatus {
		return false
	}
	return true
}

func (r memStatuses) List(_ context.Context, f StatusFilter) ([]models.Status, error) {
	err := r.m.enter("Statuses.List")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := []models.Status{}
	for _, s := range r.m.statuses {
		if r.match(s, f) {
			out = append(out, *s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return pageOf(out, f.Page), nil
}

func (r memStatuses) Get(_ context.Context, id string) (*models.Status, error) {
	err := r.m.enter("Statuses.Get")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s, ok := r.m.statuses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r memStatuses) Create(_ context.Context, s *models.Status) error {
	err := r.m.enter("Statuses.Create")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.m.characters[s.CharacterID]; !ok {
		return ErrNotFound
	}
	stamp(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	s.Normalize()
	r.m.statuses[s.ID] = s.Clone()
	return nil
}

func (r memStatuses) Save(_ context.Context, s *models.Status) error {
	err := r.m.enter("Statuses.Save")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	old, ok := r.m.statuses[s.ID]
	if !ok {
		return ErrNotFound
	}
	s.Normalize()
	s.CreatedAt = old.CreatedAt
	s.IsDefault = old.IsDefault
	s.UpdatedAt = time.Now()
	r.m.statuses[s.ID] = s.Clone()
	return nil
}

func (r memStatuses) Delete(_ context.Context, id string) error {
	err := r.m.enter("Statuses.Delete")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.m.statuses[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.statuses, id)
	return nil
}

func (r memStatuses) Count(_ context.Context, f StatusFilter) (int64, error) {
	err := r.m.enter("Statuses.Count")
	defer r.m.mu.Unlock()
	var n int64
	for _, s := range r.m.statuses {
		if r.match(s, f) {
			n++
		}
	}
	return n, err
}

func (r memStatuses) ClearDefault(_ context.Context, characterID string) error {
	err := r.m.enter("Statuses.ClearDefault")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	for _, s := range r.m.statuses {
		if s.CharacterID == characterID {
			s.IsDefault = false
		}
	}
	return nil
}

func (r memStatuses) MarkDefault(_ context.Context, id string) error {
	err := r.m.enter("Statuses.MarkDefault")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	s, ok := r.m.statuses[id]
	if !ok {
		return ErrNotFound
	}
	s.IsDefault = true
	return nil
}

func (r memStatuses) Defaults(context.Context) ([]models.Status, error) {
	err := r.m.enter("Statuses.Defaults")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := []models.Status{}
	for _, s := range r.m.statuses {
		if s.IsDefault && s.HasStartingImage() {
			out = append(out, *s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

type memPrompts struct{ m *Memory }

func (r memPrompts) List(_ context.Context, opts ListOptions) ([]models.Prompt, error) {
	err := r.m.enter("Prompts.List")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := []models.Prompt{}
	for _, p := range r.m.prompts {
		if opts.Category == "" || p.Category == opts.Category {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return pageOf(out, opts.Page), nil
}

func (r memPrompts) Get(_ context.Context, id string) (*models.Prompt, error) {
	err := r.m.enter("Prompts.Get")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	p, ok := r.m.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r memPrompts) Create(_ context.Context, p *models.Prompt) error {
	err := r.m.enter("Prompts.Create")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	r.m.prompts[p.ID] = *p
	return nil
}

func (r memPrompts) Update(_ context.Context, p *models.Prompt) error {
	err := r.m.enter("Prompts.Update")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	old, ok := r.m.prompts[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now()
	r.m.prompts[p.ID] = *p
	return nil
}

func (r memPrompts) Delete(_ context.Context, id string) error {
	err := r.m.enter("Prompts.Delete")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.m.prompts[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.prompts, id)
	return nil
}

func (r memPrompts) Count(context.Context) (int64, error) {
	err := r.m.enter("Prompts.Count")
	defer r.m.mu.Unlock()
	return int64(len(r.m.prompts)), err
}

type memAssets struct{ m *Memory }

func (r memAssets) List(_ context.Context, opts ListOptions) ([]models.Asset, error) {
	err := r.m.enter("Assets.List")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := []models.Asset{}
	for _, a := range r.m.assets {
		if opts.Category == "" || a.Category == opts.Category {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return pageOf(out, opts.Page), nil
}

func (r memAssets) Get(_ context.Context, id string) (*models.Asset, error) {
	err := r.m.enter("Assets.Get")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	a, ok := r.m.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r memAssets) Create(_ context.Context, a *models.Asset) error {
	err := r.m.enter("Assets.Create")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	stamp(&a.ID, &a.CreatedAt, nil)
	r.m.assets[a.ID] = *a
	return nil
}

func (r memAssets) Delete(_ context.Context, id string) error {
	err := r.m.enter("Assets.Delete")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.m.assets[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.assets, id)
	return nil
}

func (r memAssets) Count(context.Context) (int64, error) {
	err := r.m.enter("Assets.Count")
	defer r.m.mu.Unlock()
	return int64(len(r.m.assets)), err
}

type memLookItems struct{ m *Memory }

func (r memLookItems) live(category models.LookCategory) []models.LookItem {
	out := []models.LookItem{}
	for _, it := range r.m.lookItems {
		if it.Category == category && !it.DeletedAt.Valid {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return strings.Compare(out[i].ID, out[j].ID) < 0
	})
	return out
}

func (r memLookItems) List(_ context.Context, category models.LookCategory, p int) ([]models.LookItem, error) {
	err := r.m.enter("LookItems.List")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return pageOf(r.live(category), p), nil
}

func (r memLookItems) Get(_ context.Context, category models.LookCategory, id string) (*models.LookItem, error) {
	err := r.m.enter("LookItems.Get")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	it, ok := r.m.lookItems[id]
	if !ok || it.Category != category || it.DeletedAt.Valid {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (r memLookItems) Create(_ context.Context, it *models.LookItem) error {
	err := r.m.enter("LookItems.Create")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	if _, exists := r.m.lookItems[it.ID]; exists {
		return ErrDuplicate
	}
	stamp(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	r.m.lookItems[it.ID] = *it
	return nil
}

func (r memLookItems) Update(_ context.Context, it *models.LookItem) error {
	err := r.m.enter("LookItems.Update")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	old, ok := r.m.lookItems[it.ID]
	if !ok || old.Category != it.Category || old.DeletedAt.Valid {
		return ErrNotFound
	}
	it.CreatedAt = old.CreatedAt
	it.UpdatedAt = time.Now()
	r.m.lookItems[it.ID] = *it
	return nil
}

func (r memLookItems) Delete(_ context.Context, category models.LookCategory, id string) error {
	err := r.m.enter("LookItems.Delete")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	it, ok := r.m.lookItems[id]
	if !ok || it.Category != category || it.DeletedAt.Valid {
		return ErrNotFound
	}
	it.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	r.m.lookItems[id] = it
	return nil
}

func (r memLookItems) MaxDisplayOrder(_ context.Context, category models.LookCategory) (int, error) {
	err := r.m.enter("LookItems.MaxDisplayOrder")
	defer r.m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	orders := []int{0}
	for _, it := range r.live(category) {
		orders = append(orders, it.DisplayOrder)
	}
	return slices.Max(orders), nil
}

func (r memLookItems) SetDisplayOrders(_ context.Context, category models.LookCategory, orders map[string]int) error {
	err := r.m.enter("LookItems.SetDisplayOrders")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	for id, order := range orders {
		if it, ok := r.m.lookItems[id]; ok && it.Category == category {
			it.DisplayOrder = order
			r.m.lookItems[id] = it
		}
	}
	return nil
}

func (r memLookItems) Count(_ context.Context, category models.LookCategory) (int64, error) {
	err := r.m.enter("LookItems.Count")
	defer r.m.mu.Unlock()
	return int64(len(r.live(category))), err
}

type memOnboarding struct{ m *Memory }

func (r memOnboarding) List(context.Context) ([]models.OnboardingStep, error) {
	err := r.m.enter("Onboarding.List")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]models.OnboardingStep, 0, len(r.m.onboarding))
	for _, s := range r.m.onboarding {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepID < out[j].StepID })
	return out, nil
}

func (r memOnboarding) Get(_ context.Context, stepID string) (*models.OnboardingStep, error) {
	err := r.m.enter("Onboarding.Get")
	defer r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s, ok := r.m.onboarding[stepID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r memOnboarding) Upsert(_ context.Context, s *models.OnboardingStep) error {
	err := r.m.enter("Onboarding.Upsert")
	defer r.m.mu.Unlock()
	if err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	r.m.onboarding[s.StepID] = *s
	return nil
}

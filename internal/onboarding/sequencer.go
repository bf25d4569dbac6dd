package onboarding

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Player renders one step and calls complete when the user is done with it.
// Play blocks until the step is over or ctx ends.
type Player interface {
	Play(ctx context.Context, complete func()) error
}

// PlayerFunc adapts a function to Player
type PlayerFunc func(ctx context.Context, complete func()) error

func (f PlayerFunc) Play(ctx context.Context, complete func()) error { return f(ctx, complete) }

// Sequencer plays steps in the fixed order. Steps without a player are skipped.
type Sequencer struct {
	players map[string]Player
	// OnStep, when set, is called before each step starts
	OnStep func(stepID string)
}

func NewSequencer(players map[string]Player) *Sequencer {
	return &Sequencer{players: players}
}

// Run plays every step and returns once the last one completes
func (s *Sequencer) Run(ctx context.Context) error {
	for _, id := range Steps {
		p, ok := s.players[id]
		if !ok {
			continue
		}
		if s.OnStep != nil {
			s.OnStep(id)
		}
		if err := s.play(ctx, id, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) play(ctx context.Context, id string, p Player) error {
	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	var once sync.Once
	complete := func() { once.Do(func() { close(done) }) }

	errc := make(chan error, 1)
	go func() { errc <- p.Play(stepCtx, complete) }()

	select {
	case <-done:
		// stop anything the player still has running and wait for it
		cancel()
		<-errc
		return nil
	case err := <-errc:
		select {
		case <-done:
			return nil
		default:
		}
		if err != nil {
			return fmt.Errorf("step %s: %w", id, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("step %s returned without completing", id)
	case <-ctx.Done():
		<-errc
		select {
		case <-done:
			return nil
		default:
		}
		return ctx.Err()
	}
}

// FinalizingPlayer shows each message for Delay, then completes on its own
type FinalizingPlayer struct {
	Messages []string
	Delay    time.Duration
	Show     func(msg string)
}

func (p *FinalizingPlayer) Play(ctx context.Context, complete func()) error {
	for _, msg := range p.Messages {
		if p.Show != nil {
			p.Show(msg)
		}
		timer := time.NewTimer(p.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	complete()
	return nil
}

// EntryPlayer completes on the first input that arrives after Grace. Input
// during the grace period is the transition-in event and is dropped.
type EntryPlayer struct {
	Prompt string
	Grace  time.Duration
	Input  <-chan struct{}
	Show   func(msg string)
}

func (p *EntryPlayer) Play(ctx context.Context, complete func()) error {
	if p.Show != nil && p.Prompt != "" {
		p.Show(p.Prompt)
	}

	if p.Grace > 0 {
		grace := time.NewTimer(p.Grace)
		defer grace.Stop()
	wait:
		for {
			select {
			case <-p.Input:
			case <-grace.C:
				break wait
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	select {
	case <-p.Input:
		complete()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PromptPlayer shows some lines and completes on the next input
type PromptPlayer struct {
	Lines []string
	Input <-chan struct{}
	Show  func(msg string)
}

func (p *PromptPlayer) Play(ctx context.Context, complete func()) error {
	for _, l := range p.Lines {
		if p.Show != nil {
			p.Show(l)
		}
	}
	select {
	case <-p.Input:
		complete()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Players builds a player per step from typed configs. Show renders text and
// input delivers user interactions.
func Players(configs map[string]any, show func(string), input <-chan struct{}) map[string]Player {
	out := make(map[string]Player, len(configs))
	for id, cfg := range configs {
		switch c := cfg.(type) {
		case *FinalizingConfig:
			out[id] = &FinalizingPlayer{Messages: c.Messages, Delay: time.Duration(c.DelayMS) * time.Millisecond, Show: show}
		case *EntryConfig:
			out[id] = &EntryPlayer{Prompt: c.Title + ": " + c.Prompt, Grace: time.Duration(c.GraceMS) * time.Millisecond, Input: input, Show: show}
		default:
			out[id] = &PromptPlayer{Lines: Describe(cfg), Input: input, Show: show}
		}
	}
	return out
}

// Describe renders a config as a few lines of text
func Describe(cfg any) []string {
	switch c := cfg.(type) {
	case *WelcomeConfig:
		return []string{c.Title, c.Subtitle, "[" + c.ButtonLabel + "]"}
	case *NameConfig:
		return []string{c.Prompt, fmt.Sprintf("(%d-%d characters)", c.MinLength, c.MaxLength)}
	case *AppearanceConfig:
		lines := []string{c.Title}
		for _, o := range c.Options {
			lines = append(lines, " - "+o.Label)
		}
		return lines
	case *PersonalityConfig:
		lines := []string{fmt.Sprintf("%s (pick up to %d)", c.Title, c.MaxSelections)}
		for _, t := range c.Traits {
			lines = append(lines, " - "+t)
		}
		return lines
	case *PreviewConfig:
		return []string{c.Title, c.Caption}
	case *FinalizingConfig:
		return c.Messages
	case *EntryConfig:
		return []string{c.Title, c.Prompt}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-flying-image/internal/capability"
	apperrors "go-flying-image/internal/errors"
	"go-flying-image/internal/logger"
	"go-flying-image/internal/observer"
	"go-flying-image/internal/repository"
	"go-flying-image/pkg/imageref"
	"go-flying-image/pkg/models"
)

var errNoOutput = errors.New("transformer returned no output")

// GenerationOptions configures the model request
type GenerationOptions struct {
	Model         string
	Prompt        string
	Width         int
	Height        int
	Timeout       time.Duration
	InlineResults bool
}

// GenerationService runs image transformations for a user's workspace
type GenerationService interface {
	// Generate runs one attempt and returns when it has finished. The
	// outcome is stored in the workspace; only admission errors are returned.
	Generate(ctx context.Context, user capability.Identity) error

	// Start admits a generation and runs it in the background, detached
	// from ctx cancellation
	Start(ctx context.Context, user capability.Identity) error

	// Drain waits for background generations to finish or ctx to expire
	Drain(ctx context.Context) error
}

type generationService struct {
	workspaces  *Workspaces
	transformer capability.Transformer
	history     repository.HistoryRepository
	images      repository.ImageRepository
	events      observer.Subject
	opts        GenerationOptions
	now         func() time.Time

	running sync.WaitGroup
}

// NewGenerationService creates a generation service. transformer may be nil,
// which makes generation a no-op. images and events are optional.
func NewGenerationService(
	workspaces *Workspaces,
	transformer capability.Transformer,
	history repository.HistoryRepository,
	images repository.ImageRepository,
	events observer.Subject,
	opts GenerationOptions,
) GenerationService {
	return &generationService{
		workspaces:  workspaces,
		transformer: transformer,
		history:     history,
		images:      images,
		events:      events,
		opts:        opts,
		now:         time.Now,
	}
}

func (s *generationService) Generate(ctx context.Context, user capability.Identity) error {
	ws, input, ok, err := s.admit(user)
	if err != nil || !ok {
		return err
	}
	s.run(ctx, user, ws, input)
	return nil
}

func (s *generationService) Start(ctx context.Context, user capability.Identity) error {
	ws, input, ok, err := s.admit(user)
	if err != nil || !ok {
		return err
	}

	detached := context.WithoutCancel(ctx)
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{"user_id": user.UserID, "panic": r}).Error("Generation panicked")
			}
		}()
		s.run(detached, user, ws, input)
	}()
	return nil
}

func (s *generationService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *generationService) admit(user capability.Identity) (*Workspace, string, bool, error) {
	if s.transformer == nil {
		return nil, "", false, nil
	}
	ws := s.workspaces.Get(user.UserID)
	input, ok, err := ws.begin()
	return ws, input, ok, err
}

// run performs the single transformer call of an admitted generation.
// The workspace always leaves InFlight before run returns.
func (s *generationService) run(ctx context.Context, user capability.Identity, ws *Workspace, input string) {
	started := s.now()
	settled := false
	defer func() {
		if !settled {
			ws.fail(apperrors.NewUnknownError("", nil))
		}
	}()

	s.publish(ctx, observer.GenerationEvent{
		EventType: observer.GenerationStarted,
		UserID:    user.UserID,
		Model:     s.opts.Model,
	})

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	result, err := s.transform(ctx, user, input)
	if err != nil {
		appErr := apperrors.ClassifyGenerationError(err)
		logger.WithFields(logrus.Fields{
			"user_id":    user.UserID,
			"model":      s.opts.Model,
			"error_type": appErr.Type,
			"error":      err.Error(),
		}).Error("Image generation failed")

		ws.fail(appErr)
		settled = true
		s.publish(ctx, observer.GenerationEvent{
			EventType:    observer.GenerationFailed,
			UserID:       user.UserID,
			Model:        s.opts.Model,
			Duration:     s.now().Sub(started),
			ErrorType:    string(appErr.Type),
			ErrorMessage: appErr.Message,
		})
		return
	}

	result = s.inline(ctx, user, result)
	s.history.Prepend(ctx, user.UserID, models.NewHistoryEntry(input, result, s.now()))

	ws.succeed(result)
	settled = true
	s.publish(ctx, observer.GenerationEvent{
		EventType: observer.GenerationCompleted,
		UserID:    user.UserID,
		Model:     s.opts.Model,
		Duration:  s.now().Sub(started),
		Success:   true,
	})
}

func (s *generationService) transform(ctx context.Context, user capability.Identity, input string) (string, error) {
	out, err := s.transformer.Run(ctx, user, s.opts.Model, capability.TransformInput{
		Prompt:     s.opts.Prompt,
		InputImage: input,
		Width:      s.opts.Width,
		Height:     s.opts.Height,
	})
	if err != nil {
		return "", err
	}
	if out == nil || len(out.Output) == 0 || out.Output[0] == "" {
		return "", errNoOutput
	}
	return out.Output[0], nil
}

// inline converts a remote result to a data URL when enabled. A failed
// fetch keeps the remote reference.
func (s *generationService) inline(ctx context.Context, user capability.Identity, result string) string {
	if !s.opts.InlineResults || s.images == nil || imageref.IsInline(result) {
		return result
	}

	inlined, err := s.images.Inline(ctx, result)
	if err != nil {
		s.publish(ctx, observer.GenerationEvent{
			EventType:    observer.ResultInlineFailed,
			UserID:       user.UserID,
			ErrorMessage: err.Error(),
		})
		return result
	}

	s.publish(ctx, observer.GenerationEvent{EventType: observer.ResultInlined, UserID: user.UserID})
	return inlined
}

func (s *generationService) publish(ctx context.Context, event observer.GenerationEvent) {
	if s.events == nil {
		return
	}
	s.events.NotifyObservers(ctx, event)
}

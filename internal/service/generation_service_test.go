package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-flying-image/internal/capability"
	apperrors "go-flying-image/internal/errors"
	"go-flying-image/pkg/models"
)

const selectedImage = "data:image/png;base64,iVBORw0KGgo="

func selectInput(h *harness) {
	h.workspaces.Get(testUser.UserID).selectImage(selectedImage)
}

func TestGenerate_NoSelectionIsNoop(t *testing.T) {
	tr := succeedWith("https://cdn.example.com/out.png")
	h := newHarness(tr, nil, defaultOptions())

	require.NoError(t, h.generation.Generate(context.Background(), testUser))

	assert.Zero(t, tr.callCount())
	assert.Equal(t, PhaseIdle, h.workspace.Snapshot(testUser.UserID).Phase)
}

func TestGenerate_NoTransformerIsNoop(t *testing.T) {
	h := newHarness(nil, nil, defaultOptions())
	selectInput(h)

	require.NoError(t, h.generation.Generate(context.Background(), testUser))
	assert.Equal(t, PhaseIdle, h.workspace.Snapshot(testUser.UserID).Phase)
}

func TestGenerate_Success(t *testing.T) {
	tr := succeedWith("https://cdn.example.com/out.png")
	h := newHarness(tr, nil, defaultOptions())
	selectInput(h)

	require.NoError(t, h.generation.Generate(context.Background(), testUser))

	require.Equal(t, 1, tr.callCount())
	assert.Equal(t, "black-forest-labs/flux-kontext-max", tr.models[0])
	assert.Equal(t, capability.TransformInput{
		Prompt:     "a person flying through the air",
		InputImage: selectedImage,
		Width:      1024,
		Height:     1024,
	}, tr.inputs[0])

	snap := h.workspace.Snapshot(testUser.UserID)
	assert.Equal(t, PhaseSucceeded, snap.Phase)
	assert.Equal(t, "https://cdn.example.com/out.png", snap.GeneratedResult)
	assert.Nil(t, snap.Error)

	history := h.workspace.History(context.Background(), testUser.UserID)
	require.Len(t, history, 1)
	assert.Equal(t, selectedImage, history[0].OriginalImage)
	assert.Equal(t, "https://cdn.example.com/out.png", history[0].GeneratedImage)
	assert.InDelta(t, time.Now().UnixMilli(), history[0].Timestamp, 5000)
}

func TestGenerate_UsesFirstOutput(t *testing.T) {
	tr := &fakeTransformer{output: &capability.TransformOutput{Output: []string{"first", "second"}}}
	h := newHarness(tr, nil, defaultOptions())
	selectInput(h)

	require.NoError(t, h.generation.Generate(context.Background(), testUser))
	assert.Equal(t, "first", h.workspace.Snapshot(testUser.UserID).GeneratedResult)
}

func TestGenerate_FailureClassification(t *testing.T) {
	retry125 := 125 * time.Second
	retry1500ms := 1500 * time.Millisecond

	tests := []struct {
		name          string
		err           error
		output        *capability.TransformOutput
		wantType      apperrors.ErrorType
		wantMessage   string
		wantRetry     *time.Duration
		offersUpgrade bool
	}{
		{
			name:          "insufficient credits",
			err:           &capability.Failure{Kind: capability.FailureInsufficientCredits, Message: "no credits"},
			wantType:      apperrors.ErrorTypeInsufficientCredits,
			wantMessage:   "You don't have enough credits. Please upgrade your plan to continue.",
			offersUpgrade: true,
		},
		{
			name:        "rate limited with hint",
			err:         &capability.Failure{Kind: capability.FailureRateLimited, RetryAfter: &retry125},
			wantType:    apperrors.ErrorTypeRateLimitExceeded,
			wantMessage: "Rate limit exceeded. Please try again in 125 seconds.",
			wantRetry:   &retry125,
		},
		{
			name:        "rate limited rounds up",
			err:         &capability.Failure{Kind: capability.FailureRateLimited, RetryAfter: &retry1500ms},
			wantType:    apperrors.ErrorTypeRateLimitExceeded,
			wantMessage: "Rate limit exceeded. Please try again in 2 seconds.",
			wantRetry:   &retry1500ms,
		},
		{
			name:        "rate limited without hint",
			err:         &capability.Failure{Kind: capability.FailureRateLimited},
			wantType:    apperrors.ErrorTypeRateLimitExceeded,
			wantMessage: "Rate limit exceeded. Please try again in 60 seconds.",
		},
		{
			name:        "network",
			err:         &capability.Failure{Kind: capability.FailureNetwork, Cause: errors.New("connection reset")},
			wantType:    apperrors.ErrorTypeNetwork,
			wantMessage: apperrors.MsgNetwork,
		},
		{
			name:        "other with message",
			err:         &capability.Failure{Kind: capability.FailureOther, Message: "Model is warming up"},
			wantType:    apperrors.ErrorTypeUnknown,
			wantMessage: "Model is warming up",
		},
		{
			name:        "untagged error",
			err:         fmt.Errorf("wrapped: %w", errors.New("boom")),
			wantType:    apperrors.ErrorTypeUnknown,
			wantMessage: "Failed to generate image. Please try again.",
		},
		{
			name:        "empty output",
			output:      &capability.TransformOutput{},
			wantType:    apperrors.ErrorTypeUnknown,
			wantMessage: "Failed to generate image. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransformer{output: tt.output, err: tt.err}
			h := newHarness(tr, nil, defaultOptions())
			selectInput(h)

			require.NoError(t, h.generation.Generate(context.Background(), testUser))

			snap := h.workspace.Snapshot(testUser.UserID)
			require.NotNil(t, snap.Error)
			assert.Equal(t, PhaseFailed, snap.Phase)
			assert.Equal(t, tt.wantType, snap.Error.Type)
			assert.Equal(t, tt.wantMessage, snap.Error.Message)
			assert.Equal(t, tt.wantRetry, snap.Error.RetryAfter)
			assert.Equal(t, tt.offersUpgrade, snap.Error.OffersUpgrade())
			assert.Equal(t, !tt.offersUpgrade, snap.Error.Dismissible())
			assert.Empty(t, snap.GeneratedResult)
			assert.Equal(t, selectedImage, snap.SelectedImage, "selection survives a failure")
			assert.Empty(t, h.workspace.History(context.Background(), testUser.UserID), "failures add no history")
			assert.Equal(t, 1, tr.callCount(), "exactly one attempt")
		})
	}
}

func TestGenerate_NewAttemptClearsError(t *testing.T) {
	tr := &fakeTransformer{err: &capability.Failure{Kind: capability.FailureOther}}
	h := newHarness(tr, nil, defaultOptions())
	selectInput(h)

	require.NoError(t, h.generation.Generate(context.Background(), testUser))
	require.NotNil(t, h.workspace.Snapshot(testUser.UserID).Error)

	tr.err = nil
	tr.output = &capability.TransformOutput{Output: []string{"https://cdn.example.com/ok.png"}}
	require.NoError(t, h.generation.Generate(context.Background(), testUser))

	snap := h.workspace.Snapshot(testUser.UserID)
	assert.Nil(t, snap.Error)
	assert.Equal(t, PhaseSucceeded, snap.Phase)
}

func TestStart_RejectsConcurrentGeneration(t *testing.T) {
	tr := succeedWith("https://cdn.example.com/out.png")
	tr.release = make(chan struct{})
	tr.entered = make(chan struct{}, 1)
	h := newHarness(tr, nil, defaultOptions())
	selectInput(h)

	require.NoError(t, h.generation.Start(context.Background(), testUser))
	<-tr.entered

	assert.True(t, h.workspace.Snapshot(testUser.UserID).Generating())
	assert.ErrorIs(t, h.generation.Generate(context.Background(), testUser), ErrGenerationInFlight)
	assert.ErrorIs(t, h.generation.Start(context.Background(), testUser), ErrGenerationInFlight)
	assert.ErrorIs(t, h.workspace.Reset(testUser.UserID), ErrGenerationInFlight)

	close(tr.release)
	require.NoError(t, h.generation.Drain(context.Background()))

	assert.Equal(t, 1, tr.callCount())
	snap := h.workspace.Snapshot(testUser.UserID)
	assert.False(t, snap.Generating())
	assert.Equal(t, "https://cdn.example.com/out.png", snap.GeneratedResult)
	assert.NoError(t, h.workspace.Reset(testUser.UserID))
}

func TestStart_DetachedFromRequestContext(t *testing.T) {
	tr := succeedWith("https://cdn.example.com/out.png")
	tr.release = make(chan struct{})
	tr.entered = make(chan struct{}, 1)
	h := newHarness(tr, nil, defaultOptions())
	selectInput(h)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.generation.Start(ctx, testUser))
	<-tr.entered
	cancel()
	close(tr.release)

	require.NoError(t, h.generation.Drain(context.Background()))
	assert.Equal(t, PhaseSucceeded, h.workspace.Snapshot(testUser.UserID).Phase)
}

func TestDrain_Timeout(t *testing.T) {
	tr := succeedWith("x")
	tr.release = make(chan struct{})
	h := newHarness(tr, nil, defaultOptions())
	selectInput(h)

	require.NoError(t, h.generation.Start(context.Background(), testUser))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.generation.Drain(ctx), context.DeadlineExceeded)

	close(tr.release)
	assert.NoError(t, h.generation.Drain(context.Background()))
}

func TestGenerate_HistoryCap(t *testing.T) {
	tr := succeedWith("https://cdn.example.com/out.png")
	h := newHarness(tr, nil, defaultOptions())
	selectInput(h)

	for i := 0; i < 11; i++ {
		require.NoError(t, h.generation.Generate(context.Background(), testUser))
	}

	assert.Len(t, h.workspace.History(context.Background(), testUser.UserID), models.MaxHistoryEntries)
}

func TestGenerate_InlineResults(t *testing.T) {
	opts := defaultOptions()
	opts.InlineResults = true

	t.Run("inlined", func(t *testing.T) {
		images := &fakeImages{out: "data:image/png;base64,b3V0"}
		h := newHarness(succeedWith("https://cdn.example.com/out.png"), images, opts)
		selectInput(h)

		require.NoError(t, h.generation.Generate(context.Background(), testUser))

		assert.Equal(t, "data:image/png;base64,b3V0", h.workspace.Snapshot(testUser.UserID).GeneratedResult)
		assert.Equal(t, "data:image/png;base64,b3V0", h.workspace.History(context.Background(), testUser.UserID)[0].GeneratedImage)
	})

	t.Run("fetch failure keeps remote URL", func(t *testing.T) {
		images := &fakeImages{err: errors.New("failed to fetch image after 3 attempts")}
		h := newHarness(succeedWith("https://cdn.example.com/out.png"), images, opts)
		selectInput(h)

		require.NoError(t, h.generation.Generate(context.Background(), testUser))

		snap := h.workspace.Snapshot(testUser.UserID)
		assert.Equal(t, "https://cdn.example.com/out.png", snap.GeneratedResult)
		assert.Nil(t, snap.Error)
		assert.Equal(t, PhaseSucceeded, snap.Phase)
	})

	t.Run("inline result untouched", func(t *testing.T) {
		images := &fakeImages{}
		h := newHarness(succeedWith("data:image/png;base64,AAAA"), images, opts)
		selectInput(h)

		require.NoError(t, h.generation.Generate(context.Background(), testUser))
		assert.Zero(t, images.calls)
	})
}

type deadlineTransformer struct{}

func (deadlineTransformer) Run(ctx context.Context, user capability.Identity, model string, input capability.TransformInput) (*capability.TransformOutput, error) {
	<-ctx.Done()
	return nil, &capability.Failure{Kind: capability.FailureNetwork, Cause: ctx.Err()}
}

func TestGenerate_Timeout(t *testing.T) {
	opts := defaultOptions()
	opts.Timeout = 10 * time.Millisecond
	h := newHarness(deadlineTransformer{}, nil, opts)
	selectInput(h)

	require.NoError(t, h.generation.Generate(context.Background(), testUser))

	snap := h.workspace.Snapshot(testUser.UserID)
	require.NotNil(t, snap.Error)
	assert.Equal(t, apperrors.ErrorTypeNetwork, snap.Error.Type)
	assert.Equal(t, PhaseFailed, snap.Phase)
}

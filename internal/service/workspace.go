package service

import (
	"errors"
	"sync"

	apperrors "go-flying-image/internal/errors"
	"go-flying-image/pkg/models"
)

// ErrGenerationInFlight is returned when a workspace already runs a generation
var ErrGenerationInFlight = errors.New("a generation is already in progress")

// Phase is the generation state of a workspace
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseInFlight  Phase = "in_flight"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Snapshot is a consistent copy of a workspace
type Snapshot struct {
	SelectedImage   string
	GeneratedResult string
	Error           *apperrors.AppError
	Phase           Phase
}

// Generating reports whether a generation is in flight
func (s Snapshot) Generating() bool {
	return s.Phase == PhaseInFlight
}

// Workspace holds the working state of one signed-in user
type Workspace struct {
	mu       sync.Mutex
	selected string
	result   string
	err      *apperrors.AppError
	phase    Phase
}

func newWorkspace() *Workspace {
	return &Workspace{phase: PhaseIdle}
}

func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		SelectedImage:   w.selected,
		GeneratedResult: w.result,
		Error:           w.err,
		Phase:           w.phase,
	}
}

// selectImage replaces the selection and clears the previous outcome
func (w *Workspace) selectImage(dataURL string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selected = dataURL
	w.result = ""
	w.err = nil
}

func (w *Workspace) setError(appErr *apperrors.AppError) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = appErr
}

func (w *Workspace) dismissError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = nil
}

func (w *Workspace) reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase == PhaseInFlight {
		return ErrGenerationInFlight
	}
	w.selected = ""
	w.result = ""
	w.err = nil
	w.phase = PhaseIdle
	return nil
}

func (w *Workspace) showEntry(entry models.HistoryEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selected = entry.OriginalImage
	w.result = entry.GeneratedImage
	w.err = nil
}

// begin moves the workspace into InFlight and returns the selected input.
// ok is false when there is nothing to generate from.
func (w *Workspace) begin() (input string, ok bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase == PhaseInFlight {
		return "", false, ErrGenerationInFlight
	}
	if w.selected == "" {
		return "", false, nil
	}
	w.phase = PhaseInFlight
	w.err = nil
	return w.selected, true, nil
}

func (w *Workspace) succeed(result string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.result = result
	w.err = nil
	w.phase = PhaseSucceeded
}

func (w *Workspace) fail(appErr *apperrors.AppError) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = appErr
	w.phase = PhaseFailed
}

// Workspaces is the registry of per-user workspaces
type Workspaces struct {
	mu     sync.Mutex
	byUser map[string]*Workspace
}

func NewWorkspaces() *Workspaces {
	return &Workspaces{byUser: make(map[string]*Workspace)}
}

// Get returns the workspace of userID, creating it on first use
func (r *Workspaces) Get(userID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.byUser[userID]
	if !ok {
		ws = newWorkspace()
		r.byUser[userID] = ws
	}
	return ws
}

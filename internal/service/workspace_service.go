package service

import (
	"context"
	"mime/multipart"

	apperrors "go-flying-image/internal/errors"
	"go-flying-image/internal/repository"
	"go-flying-image/pkg/models"
)

// WorkspaceService applies user actions other than generation
type WorkspaceService interface {
	Snapshot(userID string) Snapshot
	Upload(userID string, file *multipart.FileHeader)
	RejectUpload(userID string, appErr *apperrors.AppError)
	Reset(userID string) error
	DismissError(userID string)
	SelectHistory(ctx context.Context, userID string, index int) error
	History(ctx context.Context, userID string) []models.HistoryEntry
	SyncStatus(userID string) repository.SyncStatus
}

type workspaceService struct {
	workspaces *Workspaces
	intake     *Intake
	history    repository.HistoryRepository
}

func NewWorkspaceService(workspaces *Workspaces, intake *Intake, history repository.HistoryRepository) WorkspaceService {
	return &workspaceService{
		workspaces: workspaces,
		intake:     intake,
		history:    history,
	}
}

func (s *workspaceService) Snapshot(userID string) Snapshot {
	return s.workspaces.Get(userID).Snapshot()
}

// Upload runs intake. Failures become the workspace error and leave the
// current selection in place.
func (s *workspaceService) Upload(userID string, file *multipart.FileHeader) {
	ws := s.workspaces.Get(userID)

	dataURL, appErr := s.intake.Encode(file)
	if appErr != nil {
		ws.setError(appErr)
		return
	}
	if dataURL == "" {
		return
	}
	ws.selectImage(dataURL)
}

// RejectUpload records an intake failure detected before the file was parsed
func (s *workspaceService) RejectUpload(userID string, appErr *apperrors.AppError) {
	s.workspaces.Get(userID).setError(appErr)
}

func (s *workspaceService) Reset(userID string) error {
	return s.workspaces.Get(userID).reset()
}

func (s *workspaceService) DismissError(userID string) {
	s.workspaces.Get(userID).dismissError()
}

// SelectHistory shows a past generation without calling the transformer
func (s *workspaceService) SelectHistory(ctx context.Context, userID string, index int) error {
	entry, err := s.history.Entry(ctx, userID, index)
	if err != nil {
		return err
	}
	s.workspaces.Get(userID).showEntry(entry)
	return nil
}

func (s *workspaceService) History(ctx context.Context, userID string) []models.HistoryEntry {
	return s.history.Entries(ctx, userID)
}

func (s *workspaceService) SyncStatus(userID string) repository.SyncStatus {
	return s.history.SyncStatus(userID)
}

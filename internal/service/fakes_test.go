package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"go-flying-image/internal/capability"
	"go-flying-image/internal/repository"
	"go-flying-image/internal/storage"
	"go-flying-image/pkg/validation"
)

var testUser = capability.Identity{UserID: "user-1", Email: "pilot@example.com", Token: "tok"}

// 1x1 PNG
var pngBytes = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

type fakeTransformer struct {
	mu     sync.Mutex
	calls  int
	inputs []capability.TransformInput
	models []string

	output  *capability.TransformOutput
	err     error
	release chan struct{}
	entered chan struct{}
}

func (f *fakeTransformer) Run(ctx context.Context, user capability.Identity, model string, input capability.TransformInput) (*capability.TransformOutput, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, input)
	f.models = append(f.models, model)
	release, entered := f.release, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return f.output, f.err
}

func (f *fakeTransformer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func succeedWith(ref string) *fakeTransformer {
	return &fakeTransformer{output: &capability.TransformOutput{Output: []string{ref}}}
}

type fakeImages struct {
	calls int
	out   string
	err   error
}

func (f *fakeImages) Inline(ctx context.Context, ref string) (string, error) {
	f.calls++
	return f.out, f.err
}

type harness struct {
	workspaces *Workspaces
	history    *repository.SyncedHistoryRepository
	generation GenerationService
	workspace  WorkspaceService
}

func newHarness(transformer capability.Transformer, images repository.ImageRepository, opts GenerationOptions) *harness {
	workspaces := NewWorkspaces()
	history := repository.NewSyncedHistoryRepository(storage.NewMemoryStore(), nil)
	return &harness{
		workspaces: workspaces,
		history:    history,
		generation: NewGenerationService(workspaces, transformer, history, images, nil, opts),
		workspace:  NewWorkspaceService(workspaces, NewIntake(validation.NewImageValidator(0)), history),
	}
}

func defaultOptions() GenerationOptions {
	return GenerationOptions{
		Model:  "black-forest-labs/flux-kontext-max",
		Prompt: "a person flying through the air",
		Width:  1024,
		Height: 1024,
	}
}

// fileHeader builds a multipart file header the way gin hands it to handlers
func fileHeader(t *testing.T, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="photo.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["image"][0]
}

package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureBlobStore keeps each key as one JSON blob in a container
type AzureBlobStore struct {
	client    *azblob.Client
	container string
}

func NewAzureBlobStore(accountName, accountKey, container string) (*AzureBlobStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &AzureBlobStore{client: client, container: container}, nil
}

// EnsureContainer creates the container when it does not exist yet
func (s *AzureBlobStore) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", s.container, err)
	}
	return nil
}

func (s *AzureBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, blobName(key), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := resp.Body
	defer retryReader.Close()

	return io.ReadAll(retryReader)
}

func (s *AzureBlobStore) Save(ctx context.Context, key string, value []byte) error {
	if _, err := s.client.UploadBuffer(ctx, s.container, blobName(key), value, nil); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

// blobName maps "user:key" style keys onto a blob path
func blobName(key string) string {
	return strings.ReplaceAll(key, ":", "/") + ".json"
}

package supabase

import (
	"fmt"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	baseURL := strings.TrimRight(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// PublicURL maps a storage path to the public object URL; audio blobs
// are uploaded by the client app, so this side only reads and deletes.
func (s *StorageClient) PublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) DeleteFile(storagePath string) error {
	_, err := s.client.RemoveFile(s.bucket, []string{storagePath})
	return err
}

// DeleteByURL removes the blob a public URL points at. URLs outside
// this client's bucket are rejected.
func (s *StorageClient) DeleteByURL(fileURL string) error {
	path, err := s.storagePathFromURL(fileURL)
	if err != nil {
		return err
	}
	return s.DeleteFile(path)
}

func (s *StorageClient) storagePathFromURL(fileURL string) (string, error) {
	prefix := fmt.Sprintf("%s/storage/v1/object/public/%s/", s.baseURL, s.bucket)
	if !strings.HasPrefix(fileURL, prefix) {
		return "", fmt.Errorf("url %q is not in bucket %q", fileURL, s.bucket)
	}
	path := strings.TrimPrefix(fileURL, prefix)
	if path == "" {
		return "", fmt.Errorf("url %q has no storage path", fileURL)
	}
	return path, nil
}

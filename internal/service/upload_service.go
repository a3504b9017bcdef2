package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/storage"
)

const uploadContentType = "image/jpeg"

type uploadService struct {
	store  storage.Storage
	urlTTL time.Duration
}

// NewUploadService builds the image key and URL service.
func NewUploadService(store storage.Storage, urlTTL time.Duration) UploadService {
	return &uploadService{store: store, urlTTL: urlTTL}
}

// IssueKey mints an object key under the room's message prefix and a
// presigned URL the client can PUT the image to.
func (s *uploadService) IssueKey(ctx context.Context, roomID string) (string, string, error) {
	key := fmt.Sprintf("chatroom/%s/message/%s", roomID, uuid.New().String())
	uploadURL, err := s.store.GetUploadURL(ctx, key, uploadContentType, s.urlTTL)
	if err != nil {
		return "", "", err
	}
	return key, uploadURL, nil
}

// ResolveURLs maps image keys to fetchable URLs. A key that fails to
// resolve is passed through unchanged so the frame still carries it.
func (s *uploadService) ResolveURLs(ctx context.Context, keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		u, err := s.store.GetURL(ctx, key, s.urlTTL)
		if err != nil {
			l := log.Ctx(ctx)
			l.Warn().Str("key", key).Err(err).Msg("image url resolution failed")
			u = key
		}
		urls = append(urls, u)
	}
	return urls
}

package moderation

import (
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"
	"context"
)

// RoomView is a room with its ordered transcript.
type RoomView struct {
	Room     *models.Room     `json:"room"`
	Messages []models.Message `json:"messages"`
}

func (s *Service) Stats(ctx context.Context) (storage.Stats, error) {
	return s.Storage.GetStats(ctx)
}

// ListRooms returns rooms newest first.
func (s *Service) ListRooms(ctx context.Context, openOnly bool) ([]models.Room, error) {
	return s.Storage.ListRooms(ctx, openOnly)
}

// RoomWithMessages returns storage.ErrNotFound for an unknown room.
func (s *Service) RoomWithMessages(ctx context.Context, roomID string) (*RoomView, error) {
	room, err := s.Storage.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	messages, err := s.Storage.GetChatHistory(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return &RoomView{Room: room, Messages: messages}, nil
}

func (s *Service) ListReports(ctx context.Context) ([]models.Report, error) {
	return s.Storage.ListReports(ctx)
}

package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"chat-app-service/internal/models"
)

const getRoomMethod = "/room.RoomService/GetRoom"

// RoomClient wraps the room registry.
type RoomClient struct {
	conn grpc.ClientConnInterface
}

// NewRoomClient constructs the wrapper.
func NewRoomClient(conn grpc.ClientConnInterface) *RoomClient {
	return &RoomClient{conn: conn}
}

// GetRoom fetches a room. A missing room is (nil, nil).
func (r *RoomClient) GetRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"room_id": roomID})
	if err != nil {
		return nil, err
	}

	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, getRoomMethod, req, resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}

	fields := resp.GetFields()
	id := int64(fields["id"].GetNumberValue())
	if id == 0 {
		return nil, nil
	}
	return &models.Room{ID: id, Name: fields["name"].GetStringValue()}, nil
}

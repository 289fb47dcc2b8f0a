package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"chat-app-service/internal/models"
)

const getUserMethod = "/user.UserInternal/GetUser"

// UserClient reads user directory records over gRPC.
type UserClient struct {
	conn grpc.ClientConnInterface
}

// NewUserClient constructs the wrapper.
func NewUserClient(conn grpc.ClientConnInterface) *UserClient {
	return &UserClient{conn: conn}
}

// GetUser retrieves a directory record. A missing user is (nil, nil).
func (u *UserClient) GetUser(ctx context.Context, userID string) (*models.User, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, err
	}

	resp := &structpb.Struct{}
	if err := u.conn.Invoke(ctx, getUserMethod, req, resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}

	fields := resp.GetFields()
	id := fields["user_id"].GetStringValue()
	if id == "" {
		return nil, nil
	}
	user := &models.User{
		UserID:   id,
		UserName: fields["user_name"].GetStringValue(),
	}
	if avatar := fields["user_avatar"].GetStringValue(); avatar != "" {
		user.UserAvatar = &avatar
	}
	return user, nil
}

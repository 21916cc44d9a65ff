package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/odyssey-desk/internal/api"
)

// Repository is the remote notification API.
type Repository interface {
	List(ctx context.Context) ([]Notification, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) error
}

// APIRepository implements Repository over the desk API.
type APIRepository struct {
	client api.Requester
}

// NewRepository constructs an API-backed repository.
func NewRepository(client api.Requester) *APIRepository {
	return &APIRepository{client: client}
}

// List fetches the first page of notifications.
func (r *APIRepository) List(ctx context.Context) ([]Notification, error) {
	resp, err := r.client.Request(ctx, http.MethodGet, "notifications/", nil)
	if err != nil {
		return nil, err
	}
	var items []Notification
	if err := api.DecodeList(resp.Data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkRead acknowledges one notification.
func (r *APIRepository) MarkRead(ctx context.Context, id int64) error {
	_, err := r.client.Request(ctx, http.MethodPost, fmt.Sprintf("notifications/%d/mark_read/", id), nil)
	return err
}

// MarkAllRead acknowledges every notification.
func (r *APIRepository) MarkAllRead(ctx context.Context) error {
	_, err := r.client.Request(ctx, http.MethodPost, "notifications/mark_all_read/", nil)
	return err
}

package clients

import (
	"context"
	"fmt"

	ws "condoledger/internal/transport/websocket"
)

// WebSocketClient pushes document-generation events to the requesting user.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

func (c *WebSocketClient) NotifyDocumentProgress(
	ctx context.Context,
	userID int64,
	documentID string,
	progress float64,
	stage string,
) error {
	if c.hub == nil {
		return nil
	}

	data := map[string]interface{}{
		"id":       documentID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "document_progress",
		Channel: fmt.Sprintf("documents#%d", userID),
		Data:    data,
	})
	return nil
}

func (c *WebSocketClient) NotifyDocumentComplete(
	ctx context.Context,
	userID int64,
	documentID string,
	url string,
	filename string,
) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "document_complete",
		Channel: fmt.Sprintf("documents#%d", userID),
		Data: map[string]interface{}{
			"id":       documentID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	})
	return nil
}

func (c *WebSocketClient) NotifyDocumentFailed(ctx context.Context, userID int64, documentID string, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "document_failed",
		Channel: fmt.Sprintf("documents#%d", userID),
		Data: map[string]interface{}{
			"id":      documentID,
			"message": errMsg,
			"user_id": userID,
		},
	})
	return nil
}

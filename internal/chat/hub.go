package chat

import (
	"context"

	"github.com/ups-sales/api/internal/enum"
	"github.com/ups-sales/api/internal/ws"
)

// Broadcaster publishes an event to a websocket room.
type Broadcaster interface {
	Publish(room string, event ws.Event)
}

// HubPoster posts messages to websocket clients subscribed to the channel.
type HubPoster struct {
	hub Broadcaster
}

// NewHubPoster creates a HubPoster.
func NewHubPoster(hub Broadcaster) *HubPoster {
	return &HubPoster{hub: hub}
}

type hubMessage struct {
	Channel string `json:"channel"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

func (p *HubPoster) Post(_ context.Context, msg Message) error {
	event, err := ws.NewEvent(enum.ChatEventMessage, hubMessage{
		Channel: msg.Channel,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil {
		return err
	}
	p.hub.Publish(msg.Channel, event)
	return nil
}

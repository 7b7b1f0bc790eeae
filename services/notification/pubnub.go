package notification

import (
	"context"
	"errors"

	pubnub "github.com/pubnub/go"
)

// PubNubPublisher publishes notifications through PubNub.
type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(publishKey, subscribeKey, secretKey, serverID string) *PubNubPublisher {
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = publishKey
	pnConfig.SubscribeKey = subscribeKey
	pnConfig.SecretKey = secretKey
	pnConfig.UUID = serverID

	return &PubNubPublisher{pn: pubnub.NewPubNub(pnConfig)}
}

func (p *PubNubPublisher) Publish(ctx context.Context, channel string, message any) error {
	_, status, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return err
	}
	if status.Error != nil {
		return status.Error
	}
	if status.StatusCode >= 400 {
		return errors.New("pubnub publish rejected")
	}
	return nil
}

// NopPublisher drops every message. Used when no PubNub keys are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, channel string, message any) error { return nil }

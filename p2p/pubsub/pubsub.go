// Package pubsub is a thin wrapper around gossipsub with topic validators.
package pubsub

import (
	"context"
	"fmt"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/homestead-network/go-homestead/hash"
)

const (
	// TopicTransactions carries signed transfers.
	TopicTransactions = "transactions"
	// TopicBlocks carries block announcements.
	TopicBlocks = "blocks"
)

// Publisher interface for publishing messages.
type Publisher interface {
	Publish(context.Context, string, []byte) error
}

// Subscriber is an interface for subscribing to messages.
type Subscriber interface {
	Register(string, GossipHandler) error
}

// PublishSubscriber is a common interface for publishing and subscribing.
type PublishSubscriber interface {
	Publisher
	Subscriber
}

// GossipHandler is a function for receiving messages.
type GossipHandler = func(context.Context, peer.ID, []byte) ValidationResult

// ValidationResult is one of the validation result constants.
type ValidationResult = pubsub.ValidationResult

const (
	// ValidationAccept should be returned if the message is good and can be relayed.
	ValidationAccept = pubsub.ValidationAccept
	// ValidationIgnore should be returned if the message might be good but is
	// outdated and shouldn't be relayed.
	ValidationIgnore = pubsub.ValidationIgnore
	// ValidationReject should be returned if the message is malformed or
	// malicious and shouldn't be relayed. The peer might get banned.
	ValidationReject = pubsub.ValidationReject
)

// PubSub is a gossipsub instance with registered topics.
type PubSub struct {
	logger *zap.Logger
	pubsub *pubsub.PubSub

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// New creates a PubSub instance on the host.
func New(ctx context.Context, logger *zap.Logger, h host.Host) (*PubSub, error) {
	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithFloodPublish(true),
		pubsub.WithMessageIdFn(msgID),
		pubsub.WithNoAuthor(),
		pubsub.WithMessageSignaturePolicy(pubsub.StrictNoSign),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize gossipsub: %w", err)
	}
	return &PubSub{
		logger: logger,
		pubsub: ps,
		topics: map[string]*pubsub.Topic{},
	}, nil
}

// Register sets the handler as the validator for the topic and joins it.
func (ps *PubSub) Register(topic string, handler GossipHandler) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, exist := ps.topics[topic]; exist {
		return fmt.Errorf("already registered topic %s", topic)
	}
	err := ps.pubsub.RegisterTopicValidator(topic,
		func(ctx context.Context, pid peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
			return handler(ctx, pid, msg.Data)
		},
	)
	if err != nil {
		return fmt.Errorf("register validator for %s: %w", topic, err)
	}
	topich, err := ps.pubsub.Join(topic)
	if err != nil {
		return fmt.Errorf("join topic %s: %w", topic, err)
	}
	// Subscribe keeps the mesh alive, handlers run in the validator.
	if _, err := topich.Subscribe(); err != nil {
		return fmt.Errorf("subscribe topic %s: %w", topic, err)
	}
	ps.topics[topic] = topich
	return nil
}

// Publish message to the topic. The message will pass the local validator
// like any other.
func (ps *PubSub) Publish(ctx context.Context, topic string, msg []byte) error {
	ps.mu.Lock()
	topich, exist := ps.topics[topic]
	ps.mu.Unlock()
	if !exist {
		return fmt.Errorf("not registered to topic %s", topic)
	}
	if err := topich.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func msgID(msg *pb.Message) string {
	hasher := hash.New()
	if msg.Topic != nil {
		hasher.Write([]byte(*msg.Topic))
	}
	hasher.Write(msg.Data)
	return string(hasher.Sum(nil))
}

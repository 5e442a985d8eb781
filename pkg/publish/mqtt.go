package publish

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eipdev/eipdev-go/pkg/config"
)

// ErrNotConnected is returned by Publish before Start succeeded.
var ErrNotConnected = errors.New("publisher not connected")

// MQTT publishes messages to an MQTT broker.
//
// Topics are <root>/<category>[/<assembly>]. Data messages are retained so
// a late subscriber sees the last value of every assembly.
type MQTT struct {
	config config.MQTTConfig

	mu     sync.RWMutex
	client pahomqtt.Client
}

// NewMQTT creates an MQTT publisher.
func NewMQTT(cfg config.MQTTConfig) *MQTT {
	return &MQTT{config: cfg}
}

// Name returns "mqtt".
func (p *MQTT) Name() string { return "mqtt" }

// Start connects to the broker.
func (p *MQTT) Start(ctx context.Context) error {
	opts := pahomqtt.NewClientOptions()
	if p.config.UseTLS {
		opts.AddBroker(fmt.Sprintf("ssl://%s:%d", p.config.Broker, p.config.Port))
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port))
	}
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("connect %s:%d: %w", p.config.Broker, p.config.Port, err)
	}

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
	return nil
}

// Publish sends msg to its topic.
func (p *MQTT) Publish(ctx context.Context, msg Message) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}

	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	return wait(ctx, client.Publish(p.Topic(msg), 0, msg.IsData(), payload))
}

// Stop disconnects from the broker.
func (p *MQTT) Stop() error {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
	}
	return nil
}

// Topic returns the topic msg is published to.
func (p *MQTT) Topic(msg Message) string {
	parts := []string{strings.TrimSuffix(p.config.RootTopic, "/"), strings.ToLower(msg.Category)}
	if msg.AssemblyID != 0 {
		parts = append(parts, strconv.Itoa(int(msg.AssemblyID)))
	}
	return strings.Join(parts, "/")
}

// wait blocks until token completes or ctx is done.
func wait(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Publisher = (*MQTT)(nil)

// Package mqtt connects an agent to its parent coordinator over MQTT.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/evagent/core/coordinator"
	"github.com/kilianp07/evagent/core/events"
	"github.com/kilianp07/evagent/core/model"
	"github.com/kilianp07/evagent/core/monitoring"
	"github.com/kilianp07/evagent/infra/logger"
)

const (
	presenceOnline  = "online"
	presenceOffline = "offline"
)

var (
	// ErrNotConnected is returned when publishing while the coordinator
	// session is not established.
	ErrNotConnected = errors.New("mqtt: not connected to coordinator")
	// ErrPublishTimeout is returned when the broker does not confirm a
	// publication in time.
	ErrPublishTimeout = errors.New("mqtt: publish timeout")
	// ErrConnectTimeout is returned when the broker does not accept the
	// connection in time.
	ErrConnectTimeout = errors.New("mqtt: connect timeout")
)

// Coordinator implements coordinator.Coordinator over MQTT. The parent
// announces the session on a retained status topic and answers each bid on
// the agent's price topic.
type Coordinator struct {
	cli     pahoClient
	cfg     Config
	topics  Topics
	agentID string
	log     logger.Logger

	mu      sync.RWMutex
	status  model.ConnectionStatus
	handler coordinator.PriceHandler
	closed  bool
}

// NewCoordinator connects to the broker for agentID, a child of parentID.
func NewCoordinator(cfg Config, parentID, agentID string, log logger.Logger) (*Coordinator, error) {
	cfg.SetDefaults()
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("%s-%s", agentID, uuid.NewString()[:8])
	}
	if log == nil {
		log = logger.New("mqtt_coordinator")
	}
	topics := NewTopics(cfg.TopicPrefix, parentID, agentID)
	opts, err := NewClientOptions(cfg, topics)
	if err != nil {
		return nil, err
	}
	c := &Coordinator{cfg: cfg, topics: topics, agentID: agentID, log: log}

	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
		c.setConnected(false)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	cli := newMQTTClient(opts)
	c.cli = cli
	if token := cli.Connect(); !token.WaitTimeout(c.timeout()) {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, ErrConnectTimeout)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}
	return c, nil
}

func (c *Coordinator) timeout() time.Duration {
	return time.Duration(c.cfg.TimeoutMS) * time.Millisecond
}

// Topics returns the topic layout used by this agent.
func (c *Coordinator) Topics() Topics { return c.topics }

func (c *Coordinator) onConnect(cli paho.Client) {
	c.log.Infof("MQTT connected")
	if token := cli.Subscribe(c.topics.Status, c.cfg.qos("status"), c.onStatus); token.Wait() && token.Error() != nil {
		c.log.Errorf("subscribe %s: %v", c.topics.Status, token.Error())
	}
	if token := cli.Subscribe(c.topics.Prices, c.cfg.qos("price"), c.onPrice); token.Wait() && token.Error() != nil {
		c.log.Errorf("subscribe %s: %v", c.topics.Prices, token.Error())
	}
	cli.Publish(c.topics.Presence, c.cfg.qos("presence"), true, presenceOnline)
}

func (c *Coordinator) onStatus(_ paho.Client, msg paho.Message) {
	var st model.ConnectionStatus
	if err := json.Unmarshal(msg.Payload(), &st); err != nil {
		c.log.Errorf("failed to decode status: %v", err)
		return
	}
	if st.Connected {
		if err := st.Basis.Validate(); err != nil {
			c.log.Errorf("coordinator sent %v, staying disconnected", err)
			st.Connected = false
		}
	}
	c.mu.Lock()
	prev := c.status
	c.status = st
	c.mu.Unlock()
	if prev.Connected != st.Connected || prev.SessionID != st.SessionID {
		c.log.Infof("coordinator status: connected=%t cluster=%s session=%s", st.Connected, st.ClusterID, st.SessionID)
	}
}

func (c *Coordinator) onPrice(_ paho.Client, msg paho.Message) {
	var pu model.PriceUpdate
	if err := json.Unmarshal(msg.Payload(), &pu); err != nil {
		c.log.Errorf("failed to decode price update: %v", err)
		return
	}
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h != nil {
		h(pu)
	}
}

func (c *Coordinator) setConnected(v bool) {
	c.mu.Lock()
	c.status.Connected = v
	c.mu.Unlock()
}

// Status returns the last status received from the parent. It reports
// disconnected while the broker connection is down.
func (c *Coordinator) Status() model.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.status
	if c.closed || c.cli == nil || !c.cli.IsConnected() {
		st.Connected = false
	}
	return st
}

// OnPriceUpdate registers the price handler.
func (c *Coordinator) OnPriceUpdate(h coordinator.PriceHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// PublishBid sends the bid to the parent, retrying with exponential backoff.
func (c *Coordinator) PublishBid(ctx context.Context, bu model.BidUpdate) error {
	if err := c.ready(); err != nil {
		return err
	}
	payload, err := json.Marshal(bu)
	if err != nil {
		return err
	}
	if err := c.publish(ctx, c.topics.Bids, c.cfg.qos("bid"), payload); err != nil {
		monitoring.CaptureException(err, map[string]string{"module": "mqtt", "agent_id": c.agentID})
		return err
	}
	c.log.Debugf("sent bid %d to %s", bu.BidNumber, c.topics.Bids)
	return nil
}

// PublishState sends an EV snapshot. It is best effort: no retries.
func (c *Coordinator) PublishState(ev events.EVUpdate) error {
	if err := c.ready(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := c.cli.Publish(c.topics.EV, c.cfg.qos("ev"), false, payload)
	if !token.WaitTimeout(c.timeout()) {
		return ErrPublishTimeout
	}
	return token.Error()
}

// ForwardStates publishes every EV update received on ch until ctx is done
// or ch is closed.
func (c *Coordinator) ForwardStates(ctx context.Context, ch <-chan events.EVUpdate) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := c.PublishState(ev); err != nil && !errors.Is(err, ErrNotConnected) {
				c.log.Warnf("publish EV state: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) ready() error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return coordinator.ErrClosed
	}
	if !c.cli.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

func (c *Coordinator) publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	backoff := time.Duration(c.cfg.BackoffMS) * time.Millisecond
	var publishErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		token := c.cli.Publish(topic, qos, false, payload)
		if !token.WaitTimeout(c.timeout()) {
			publishErr = ErrPublishTimeout
		} else {
			publishErr = token.Error()
		}
		if publishErr == nil {
			return nil
		}
		c.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(backoff * time.Duration(1<<attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Close marks the agent offline and disconnects from the broker.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	if c.cli != nil && c.cli.IsConnected() {
		token := c.cli.Publish(c.topics.Presence, c.cfg.qos("presence"), true, presenceOffline)
		token.WaitTimeout(c.timeout())
		c.cli.Disconnect(250)
	}
	return nil
}

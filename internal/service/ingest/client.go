package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"TrustPulse/internal/domain/models"
	drepo "TrustPulse/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements an ObservationStream backed by a WebSocket feed.
// The feed pushes observation frames for the signal keys subscribed to.
type Client struct {
	token          string
	websocketURL   string
	signalKeys     []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a WebSocket-backed ObservationStream.
func New(token, websocketURL string, signalKeys []string, reconnectDelay, pingInterval time.Duration) drepo.ObservationStream {
	return &Client{
		token:          token,
		websocketURL:   websocketURL,
		signalKeys:     signalKeys,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.token != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("feed: connected")
	return nil
}

// Subscribe subscribes to the configured signal keys.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, k := range c.signalKeys {
		msg := map[string]string{"type": "subscribe", "signal": k}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", k, err)
		}
		log.Printf("feed: subscribed %s", k)
	}
	return nil
}

type feedObservation struct {
	Key      string   `json:"signal_key"`
	T        int64    `json:"t"` // ms
	Value    *float64 `json:"value"`
	Quality  string   `json:"quality,omitempty"`
	Producer string   `json:"producer,omitempty"`
}

type feedMessage struct {
	Type string            `json:"type"`
	Data []feedObservation `json:"data"`
}

// Read streams Observation events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Observation, <-chan error) {
	observations := make(chan *models.Observation, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(observations)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-observation frames
					continue
				}
				if m.Type != "observation" {
					continue
				}
				for _, d := range m.Data {
					value := math.NaN()
					if d.Value != nil {
						value = *d.Value
					}
					obs := &models.Observation{
						SignalKey: d.Key,
						Timestamp: time.UnixMilli(d.T).UTC(),
						Value:     value,
						Quality:   models.QualityFlag(d.Quality),
						Producer:  d.Producer,
					}
					select {
					case observations <- obs:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return observations, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }

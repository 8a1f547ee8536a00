package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/pbexport/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for publishing.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the logging used for connection events.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Connect establishes a connection to the MQTT broker, with a Last Will on
// the status topic, and publishes the online status.
//
// Parameters:
//   - cfg: MQTT configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the connection fails within the timeout
func Connect(cfg config.MQTTConfig) (*Client, error) {
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID, byte(cfg.QoS))

	c := &Client{cfg: cfg}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.publishStatus("online", "")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if l := c.getLogger(); l != nil {
			l.Warn("mqtt connection lost", "error", err)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	payload := buildStatusPayload(status, c.cfg.Broker.ClientID, reason, time.Now())
	return c.client.Publish(Topics{}.Status(), byte(c.cfg.QoS), true, payload)
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishStatus("offline", "graceful_shutdown").WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}

// SetLogger sets a logger for connection events.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

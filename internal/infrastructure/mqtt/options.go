package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/pbexport/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second

	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho options from config: broker URL (tcp://
// or ssl://), client ID, credentials, clean session and auto-reconnect.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}

// statusPayload is the body of the retained status message.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildStatusPayload(status, clientID, reason string, now time.Time) []byte {
	b, _ := json.Marshal(statusPayload{ //nolint:errcheck // plain struct of strings
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return b
}

// configureLWT registers the retained offline message the broker publishes
// if the exporter disconnects without Close.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string, qos byte) {
	opts.SetBinaryWill(Topics{}.Status(),
		buildStatusPayload("offline", clientID, "unexpected_disconnect", time.Now()),
		qos, true)
}

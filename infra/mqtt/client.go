// Package mqtt drives the charge point over MQTT: commands out, acks and
// status reports back in.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/smartcharge/core/charger"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	AuthMethod string          `json:"auth_method"`
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	TLSConfig  *tls.Config     `json:"-"`
}

// CommanderConfig configures the charger commander on top of the broker
// connection.
type CommanderConfig struct {
	ChargerID    string `json:"id"`
	MQTT         Config `json:"mqtt"`
	AckTimeoutMS int    `json:"ack_timeout_ms"`
	MaxRetries   int    `json:"max_retries"`
	BackoffMS    int    `json:"backoff_ms"`
	MaxCurrentA  int    `json:"max_current_a"`
}

// SetDefaults fills unset fields with sane values.
func (c *CommanderConfig) SetDefaults() {
	if c.AckTimeoutMS == 0 {
		c.AckTimeoutMS = 5000
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
	if c.MaxCurrentA == 0 {
		c.MaxCurrentA = 16
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "smartcharge-" + c.ChargerID
	}
	if c.MQTT.LWTTopic == "" && c.ChargerID != "" {
		c.MQTT.LWTTopic = availabilityTopic(c.ChargerID)
		c.MQTT.LWTPayload = "offline"
		c.MQTT.LWTRetain = true
	}
}

// Validate checks the configuration values.
func (c *CommanderConfig) Validate() error {
	if c.ChargerID == "" {
		return fmt.Errorf("charger id is required")
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("charger %s: mqtt broker is required", c.ChargerID)
	}
	return nil
}

func cmdTopic(id string) string          { return "smartcharge/charger/" + id + "/cmd" }
func ackTopic(id string) string          { return "smartcharge/charger/" + id + "/ack" }
func stateTopic(id string) string        { return "smartcharge/charger/" + id + "/state" }
func availabilityTopic(id string) string { return "smartcharge/charger/" + id + "/availability" }

// command is the wire format of one charger instruction.
type command struct {
	CommandID   string `json:"command_id"`
	Action      string `json:"action"`
	MaxCurrentA int    `json:"max_current_a,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// pahoClient is the subset of the Paho API the commander uses.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// ChargerClient implements charger.Commander over MQTT.
type ChargerClient struct {
	raw pahoClient
	cfg CommanderConfig
	log logger.Logger
	qos map[string]byte

	maxRetries int
	backoff    time.Duration

	mu         sync.Mutex
	ackChans   map[string]chan struct{}
	state      charger.State
	stateKnown bool
}

var _ charger.Commander = (*ChargerClient)(nil)

// NewChargerClient connects to the broker and subscribes to the charger's
// ack and state topics.
func NewChargerClient(cfg CommanderConfig) (*ChargerClient, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg.MQTT)
	if err != nil {
		return nil, err
	}

	log := logger.New("charger_mqtt")
	cc := &ChargerClient{
		cfg:        cfg,
		log:        log,
		qos:        cfg.MQTT.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		ackChans:   make(map[string]chan struct{}),
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(ackTopic(cfg.ChargerID), cc.qosFor("ack"), cc.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("ack subscribe error: %v", token.Error())
		}
		if token := c.Subscribe(stateTopic(cfg.ChargerID), cc.qosFor("state"), cc.onState); token.Wait() && token.Error() != nil {
			log.Errorf("state subscribe error: %v", token.Error())
		}
		// Birth message mirrors the LWT so consumers see connect and
		// disconnect symmetrically.
		if cfg.MQTT.LWTTopic != "" {
			c.Publish(cfg.MQTT.LWTTopic, cfg.MQTT.LWTQoS, cfg.MQTT.LWTRetain, "online")
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	cc.raw = cli
	return cc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (c *ChargerClient) qosFor(kind string) byte {
	if q, ok := c.qos[kind]; ok {
		return q
	}
	return 0
}

func (c *ChargerClient) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		CommandID string `json:"command_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		c.log.Errorf("failed to decode ack: %v", err)
		return
	}
	c.mu.Lock()
	if ch, ok := c.ackChans[m.CommandID]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		c.log.Infof("received ack %s", m.CommandID)
	}
	c.mu.Unlock()
}

func (c *ChargerClient) onState(_ paho.Client, msg paho.Message) {
	var st charger.State
	if err := json.Unmarshal(msg.Payload(), &st); err != nil {
		c.log.Errorf("failed to decode charger state: %v", err)
		return
	}
	if st.ReportedAt.IsZero() {
		st.ReportedAt = time.Now()
	}
	c.mu.Lock()
	c.state = st
	c.stateKnown = true
	c.mu.Unlock()
	c.log.Debugf("charger state: charging=%v plugged=%v phases=%d power=%.2fkW",
		st.Charging, st.Plugged, st.Phases, st.PowerKW)
}

// Start implements charger.Commander. It refuses to start while the charge
// point reports no vehicle connected.
func (c *ChargerClient) Start(ctx context.Context, maxCurrentA int) (string, error) {
	if st, ok := c.State(); ok && !st.Plugged {
		return "", charger.ErrUnplugged
	}
	if maxCurrentA <= 0 {
		maxCurrentA = c.cfg.MaxCurrentA
	}
	return c.send(ctx, "start", maxCurrentA)
}

// Stop implements charger.Commander.
func (c *ChargerClient) Stop(ctx context.Context) (string, error) {
	return c.send(ctx, "stop", 0)
}

func (c *ChargerClient) send(ctx context.Context, action string, maxCurrentA int) (string, error) {
	cmdID := uuid.NewString()
	payload, err := json.Marshal(command{
		CommandID:   cmdID,
		Action:      action,
		MaxCurrentA: maxCurrentA,
		Timestamp:   time.Now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	// Register before publishing so an instant ack is not lost.
	c.mu.Lock()
	c.ackChans[cmdID] = make(chan struct{}, 1)
	c.mu.Unlock()

	topic := cmdTopic(c.cfg.ChargerID)
	var publishErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.dropAckChan(cmdID)
				return "", ctx.Err()
			case <-time.After(c.backoff * time.Duration(1<<(attempt-1))):
			}
		}
		token := c.raw.Publish(topic, c.qosFor("cmd"), false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			c.log.Infof("sent %s command %s", action, cmdID)
			return cmdID, nil
		}
		c.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
	}
	c.dropAckChan(cmdID)
	return "", publishErr
}

// WaitForAck implements charger.Commander.
func (c *ChargerClient) WaitForAck(commandID string, timeout time.Duration) error {
	c.mu.Lock()
	ch := c.ackChans[commandID]
	c.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("unknown command %s", commandID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		c.dropAckChan(commandID)
		return nil
	case <-timer.C:
		c.dropAckChan(commandID)
		return charger.ErrAckTimeout
	}
}

// State implements charger.Commander.
func (c *ChargerClient) State() (charger.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.stateKnown
}

func (c *ChargerClient) dropAckChan(commandID string) {
	c.mu.Lock()
	delete(c.ackChans, commandID)
	c.mu.Unlock()
}

// Disconnect gracefully closes the MQTT connection.
func (c *ChargerClient) Disconnect() {
	if c.raw != nil && c.raw.IsConnected() {
		c.raw.Disconnect(250)
	}
}

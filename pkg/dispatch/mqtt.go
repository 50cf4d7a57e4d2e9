package dispatch

import(
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// A Publisher sends one message to a broker.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

type MQTTConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	ClientID  string
}

// MQTTPublisher is a Publisher backed by a paho client. It reconnects
// by itself if the broker goes away.
type MQTTPublisher struct {
	Client mqtt.Client
}

func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Port == 0 { cfg.Port = 1883 }

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.User != "" {
		opts.SetUsername(cfg.User)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Printf("mqtt connection to %s lost: %v\n", cfg.Host, err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection to %s: timeout", cfg.Host)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection to %s: %w", cfg.Host, err)
	}

	log.Printf("mqtt connected to %s:%d\n", cfg.Host, cfg.Port)
	return &MQTTPublisher{Client: client}, nil
}

func (p *MQTTPublisher)Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.Client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher)Close() {
	p.Client.Disconnect(250)
}

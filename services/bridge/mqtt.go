package bridge

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"dimu-go/types"
)

type pahoClient struct {
	c    mqtt.Client
	lost chan error
}

func newPahoClient(cfg types.BridgeConfig) *pahoClient {
	p := &pahoClient{lost: make(chan error, 1)}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(false).
		SetConnectTimeout(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			select {
			case p.lost <- err:
			default:
			}
		})
	p.c = mqtt.NewClient(opts)
	return p
}

func (p *pahoClient) Connect(ctx context.Context) error {
	tok := p.c.Connect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tok.Done():
		return tok.Error()
	}
}

func (p *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	tok := p.c.Publish(topic, qos, retained, payload)
	tok.Wait()
	return tok.Error()
}

func (p *pahoClient) Subscribe(topic string, qos byte, fn func(string, []byte)) error {
	tok := p.c.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		fn(m.Topic(), m.Payload())
	})
	tok.Wait()
	return tok.Error()
}

func (p *pahoClient) Lost() <-chan error { return p.lost }
func (p *pahoClient) Disconnect()        { p.c.Disconnect(250) }

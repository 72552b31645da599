package env

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/comm/mqtt"
)

// NewConnector creates a Connector using the registry URL of the config.
func (c *Config) NewConnector() (device.Connector, error) {
	parsedURL, err := url.Parse(c.MQTTBrokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL: %w", err)
	}
	if !brokerSchemes[parsedURL.Scheme] {
		return nil, fmt.Errorf("unknown registry URL scheme: %q", parsedURL.Scheme)
	}
	return mqtt.NewConnector(c.MQTTBrokerURL)
}

// MustNewConnector creates a Connector and fails on error.
func (c *Config) MustNewConnector() device.Connector {
	conn, err := c.NewConnector()
	if err != nil {
		log.Fatalln(err)
	}
	return conn
}

// Connect directly connects to the device in Info.Ref.
func (c *Config) Connect(ctx context.Context) (device.Conn, error) {
	if !c.Info.Ref.IsValid() {
		return nil, fmt.Errorf("device type and id must be specified")
	}
	connector, err := c.NewConnector()
	if err != nil {
		return nil, err
	}
	return connector.Connect(ctx, c.Info.Ref)
}

package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"evalgo.org/foundry/internal/auth"
	"evalgo.org/foundry/internal/config"
	"evalgo.org/foundry/models"
)

// RESTClient is the default controller client. It announces the host by
// putting its ServerInfo to each configured endpoint until one succeeds.
type RESTClient struct {
	endpoints  []string
	token      string
	httpClient *http.Client
}

// NewRESTClient mints the host token (when a secret is configured) and
// prepares the HTTP client.
func NewRESTClient(cfg config.ControllerConfig, serverID string) (*RESTClient, error) {
	var token string
	if cfg.TokenSecret != "" {
		var err error
		token, err = auth.GenerateHostToken(cfg.TokenSecret, serverID, cfg.TokenExpiration)
		if err != nil {
			return nil, fmt.Errorf("failed to generate host token: %w", err)
		}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	endpoints := make([]string, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		if ep = strings.TrimSuffix(strings.TrimSpace(ep), "/"); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}

	return &RESTClient{
		endpoints:  endpoints,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Connect announces the host to each endpoint in order. The first 2xx
// answer wins and its body is decoded as the server setup.
func (c *RESTClient) Connect(info models.ServerInfo) ConnectResult {
	if len(c.endpoints) == 0 {
		return ConnectResult{Kind: NotDefined}
	}

	data, err := json.Marshal(info)
	if err != nil {
		log.Printf("Failed to marshal server info: %v", err)
		return ConnectResult{Kind: NotConnected}
	}

	for _, endpoint := range c.endpoints {
		setup, err := c.connectOne(endpoint, info.ServerID, data)
		if err != nil {
			log.Printf("Controller %s unreachable: %v", endpoint, err)
			continue
		}
		log.Printf("Connected to controller %s", endpoint)
		return ConnectResult{Kind: Ready, Setup: setup}
	}
	return ConnectResult{Kind: NotConnected}
}

func (c *RESTClient) connectOne(endpoint, serverID string, body []byte) (*models.ServerSetup, error) {
	url := fmt.Sprintf("%s/server/%s", endpoint, serverID)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("controller answered %s - %s", resp.Status, string(payload))
	}

	setup := &models.ServerSetup{}
	if err := json.NewDecoder(resp.Body).Decode(setup); err != nil {
		return nil, fmt.Errorf("failed to decode server setup: %w", err)
	}
	return setup, nil
}

// Disconnect tells every endpoint the host is going away, best effort.
func (c *RESTClient) Disconnect(info models.ServerInfo) {
	for _, endpoint := range c.endpoints {
		url := fmt.Sprintf("%s/server/%s", endpoint, info.ServerID)
		req, err := http.NewRequest(http.MethodDelete, url, nil)
		if err != nil {
			continue
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			log.Printf("Failed to disconnect from controller %s: %v", endpoint, err)
			continue
		}
		resp.Body.Close()
	}
}

// Package interpreter consumes the live reading stream of an interpreter API
// instance over WebSocket.
package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	maxRetries     = 10
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second

	// Readings arrive every second, longer silence means a dead connection.
	readTimeout = 10 * time.Second
)

var ErrMaxRetries = errors.New("max connection retries reached")

// ReadingFromJSONBytes decodes one message of the /ws stream.
func ReadingFromJSONBytes(data []byte) (*types.Reading, error) {
	var reading types.Reading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil, fmt.Errorf("failed to parse meter reading: %w", err)
	}
	return &reading, nil
}

// StartListener manages the websocket connection and calls funcToCall for each
// reading. It reconnects with exponential backoff and returns nil once ctx is
// cancelled, or ErrMaxRetries when the server stays unreachable.
func StartListener(
	ctx context.Context,
	host string,
	tlsEnabled bool,
	logger logrus.FieldLogger,
	funcToCall func(reading *types.Reading),
) error {
	logger = logger.WithField("component", "interpreter")

	// WebSocket server URL
	scheme := "ws"
	if tlsEnabled {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: host, Path: "/ws"}

	retryCount := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		if retryCount > 0 {
			// Calculate retry delay with exponential backoff
			retryDelay := time.Duration(1<<(retryCount-1)) * baseRetryDelay
			if retryDelay > maxRetryDelay {
				retryDelay = maxRetryDelay
			}
			logger.Infof("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, maxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
		}

		logger.Infof("Connecting to %s", u.String())

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.WithError(err).Warn("Connection failed")
			retryCount++
			if retryCount >= maxRetries {
				return fmt.Errorf("%w (%d): %v", ErrMaxRetries, maxRetries, err)
			}
			continue
		}

		logger.Info("Connected! Accepting meter readings.")

		// Reset retry count on successful connection
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, logger, funcToCall)
		c.Close()
		if !connectionBroken {
			// Clean shutdown requested
			return nil
		}

		logger.Warn("Connection lost, will retry...")
		retryCount = 1
	}
}

func handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	logger logrus.FieldLogger,
	funcToCall func(reading *types.Reading),
) bool {
	done := make(chan struct{})

	c.SetReadDeadline(time.Now().Add(readTimeout))

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.WithError(err).Warn("WebSocket error")
				} else {
					logger.WithError(err).Info("Connection closed")
				}
				return
			}

			c.SetReadDeadline(time.Now().Add(readTimeout))

			// We only expect meter readings
			if messageType != websocket.TextMessage {
				logger.Debugf("Received unexpected message type: %d", messageType)
				continue
			}
			reading, err := ReadingFromJSONBytes(message)
			if err != nil {
				logger.WithError(err).Warn("Dropping message")
				continue
			}
			funcToCall(reading)
		}
	}()

	// Periodic pings keep proxies from dropping the connection.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				logger.WithError(err).Warn("Failed to send ping")
			}
		case <-ctx.Done():
			logger.Info("Shutting down, closing connection...")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				logger.WithError(err).Warn("Error sending close message")
			}

			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}

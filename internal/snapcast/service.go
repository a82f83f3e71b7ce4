package snapcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/iszland/snappy-bridge/internal/infrastructure/config"
)

// defaultRequestTimeout bounds a single RPC round trip.
const defaultRequestTimeout = 10 * time.Second

// Service issues request/response JSON-RPC calls to the Snapcast server
// over HTTP. Push notifications are handled separately by the Listener;
// this type is purely synchronous command-and-query.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Service struct {
	httpClient *http.Client
	url        string
	logger     Logger

	// nextID sequences request ids so concurrent calls stay distinguishable
	// in server logs.
	nextID atomic.Uint64
}

// NewService creates a Snapcast RPC service for the configured server.
func NewService(cfg config.SnapserverConfig, logger Logger) *Service {
	return &Service{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		url:        cfg.HTTPURL(),
		logger:     logger,
	}
}

// call performs one JSON-RPC request and decodes the result member into out.
// Pass nil out for methods whose result is ignored.
func (s *Service) call(ctx context.Context, method string, params any, out any) error {
	reqBody := rpcRequest{
		ID:      s.nextID.Add(1),
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %w", ErrRPCFailed, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrRPCFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRPCFailed, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status %d", ErrRPCFailed, method, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrRPCFailed, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrRPCFailed, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: %s: %w", ErrRPCFailed, method, rpcResp.Error)
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%w: decode result: %w", ErrRPCFailed, err)
		}
	}

	return nil
}

// ServerGetStatus fetches the full server status document.
//
// The raw document is normalised before return:
//   - groups with an empty name inherit the prettified host name of their
//     first client
//   - client names fall back to the prettified host name
//   - each group's GroupVolume is set to the rounded mean of its clients'
//     volume percents
//
// Returns:
//   - *ServerStatus: Normalised status
//   - error: If the RPC fails or the document cannot be decoded
func (s *Service) ServerGetStatus(ctx context.Context) (*ServerStatus, error) {
	var result serverGetStatusResult
	if err := s.call(ctx, "Server.GetStatus", nil, &result); err != nil {
		return nil, err
	}

	status := result.Server
	for i := range status.Groups {
		g := &status.Groups[i]

		for j := range g.Clients {
			c := &g.Clients[j]
			if c.Name == "" {
				c.Name = prettifyClientName(c.Host.Name)
			}
		}
		if g.Name == "" && len(g.Clients) > 0 {
			g.Name = prettifyClientName(g.Clients[0].Host.Name)
		}
		if len(g.Clients) > 0 {
			sum := 0
			for j := range g.Clients {
				sum += g.Clients[j].Config.Volume.Percent
			}
			g.GroupVolume = int(math.Round(float64(sum) / float64(len(g.Clients))))
		}
	}

	return &status, nil
}

// GroupSetName renames a group.
func (s *Service) GroupSetName(ctx context.Context, id, name string) error {
	return s.call(ctx, "Group.SetName", groupSetNameParams{ID: id, Name: name}, nil)
}

// GroupSetStream switches a group to a different stream.
func (s *Service) GroupSetStream(ctx context.Context, id, streamID string) error {
	return s.call(ctx, "Group.SetStream", groupSetStreamParams{ID: id, StreamID: streamID}, nil)
}

// GroupSetMute mutes or unmutes a group.
func (s *Service) GroupSetMute(ctx context.Context, id string, mute bool) error {
	return s.call(ctx, "Group.SetMute", groupSetMuteParams{ID: id, Mute: mute}, nil)
}

// GroupSetClients reassigns the member clients of a group.
func (s *Service) GroupSetClients(ctx context.Context, id string, clientIDs []string) error {
	return s.call(ctx, "Group.SetClients", groupSetClientsParams{ID: id, Clients: clientIDs}, nil)
}

// ClientSetVolume sets one client's volume and mute state.
func (s *Service) ClientSetVolume(ctx context.Context, id string, percent int, muted bool) error {
	params := clientSetVolumeParams{
		ID:     id,
		Volume: Volume{Muted: muted, Percent: percent},
	}
	return s.call(ctx, "Client.SetVolume", params, nil)
}

// prettifyClientName turns generated snapclient host names into something a
// control surface can display: "snapclient-living-room" → "Living Room".
// Names that don't carry the snapclient prefix pass through untouched.
func prettifyClientName(name string) string {
	if !strings.HasPrefix(name, "snapclient") {
		return name
	}

	rest := strings.TrimLeft(strings.TrimPrefix(name, "snapclient"), "-_")
	if rest == "" {
		return name
	}

	words := strings.FieldsFunc(rest, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

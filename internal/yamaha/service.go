package yamaha

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/iszland/snappy-bridge/internal/infrastructure/logging"
)

// defaultRequestTimeout bounds a single control request. Receivers answer
// on the local network; anything slower counts as a failed poll.
const defaultRequestTimeout = 5 * time.Second

// controlPath is the receiver's control endpoint.
const controlPath = "/YamahaRemoteControl/ctrl"

// volumeStep is the receiver's volume granularity in the fixed-point
// encoding: 5 tenths of a dB, i.e. 0.5 dB steps.
const volumeStep = 5

// Service issues control requests to Yamaha receivers. One Service handles
// any number of receivers; the target is addressed per call.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Service struct {
	httpClient *http.Client
	logger     *logging.Logger
}

// NewService creates a receiver control service.
func NewService(logger *logging.Logger) *Service {
	return &Service{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger,
	}
}

// command posts one YAMAHA_AV document and decodes the response envelope.
// host is the receiver's host[:port] without scheme; verb is GET or PUT.
func (s *Service) command(ctx context.Context, host string, verb string, zone Zone, inner string) (*response, error) {
	body := fmt.Sprintf("<YAMAHA_AV cmd=%q><%s>%s</%s></YAMAHA_AV>", verb, zone, inner, zone)
	url := "http://" + host + controlPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRequestFailed, host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: unexpected status %d", ErrRequestFailed, host, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrRequestFailed, err)
	}

	var doc response
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrBadResponse, err)
	}
	if doc.RC != 0 {
		return nil, fmt.Errorf("%w: %s: return code %d", ErrBadResponse, host, doc.RC)
	}

	return &doc, nil
}

// BasicStatus fetches one zone's full state snapshot.
func (s *Service) BasicStatus(ctx context.Context, host string, zone Zone) (*BasicStatus, error) {
	doc, err := s.command(ctx, host, "GET", zone, "<Basic_Status>GetParam</Basic_Status>")
	if err != nil {
		return nil, err
	}

	body := doc.body(zone)
	if body == nil || body.BasicStatus == nil {
		return nil, fmt.Errorf("%w: %s: no %s status in response", ErrBadResponse, host, zone)
	}
	return body.BasicStatus, nil
}

// Config fetches one zone's configuration block (zone name, scene names,
// feature availability).
func (s *Service) Config(ctx context.Context, host string, zone Zone) (*ZoneConfig, error) {
	doc, err := s.command(ctx, host, "GET", zone, "<Config>GetParam</Config>")
	if err != nil {
		return nil, err
	}

	body := doc.body(zone)
	if body == nil || body.Config == nil {
		return nil, fmt.Errorf("%w: %s: no %s config in response", ErrBadResponse, host, zone)
	}
	return body.Config, nil
}

// PowerOn switches a zone on.
func (s *Service) PowerOn(ctx context.Context, host string, zone Zone) error {
	_, err := s.command(ctx, host, "PUT", zone, "<Power_Control><Power>On</Power></Power_Control>")
	return err
}

// PowerOff puts a zone into standby.
func (s *Service) PowerOff(ctx context.Context, host string, zone Zone) error {
	_, err := s.command(ctx, host, "PUT", zone, "<Power_Control><Power>Standby</Power></Power_Control>")
	return err
}

// SetZoneName sets a zone's display name.
func (s *Service) SetZoneName(ctx context.Context, host string, zone Zone, name string) error {
	var escaped strings.Builder
	if err := xml.EscapeText(&escaped, []byte(name)); err != nil {
		return fmt.Errorf("%w: escape name: %w", ErrRequestFailed, err)
	}

	inner := fmt.Sprintf("<Config><Name><Zone>%s</Zone></Name></Config>", escaped.String())
	_, err := s.command(ctx, host, "PUT", zone, inner)
	return err
}

// SetVolume sets a zone's volume in dB. The receiver only accepts 0.5 dB
// steps, so the requested level is rounded to the nearest step first.
func (s *Service) SetVolume(ctx context.Context, host string, zone Zone, db float64) error {
	inner := fmt.Sprintf("<Volume><Lvl><Val>%d</Val><Exp>1</Exp><Unit>dB</Unit></Lvl></Volume>", roundVolume(db))
	_, err := s.command(ctx, host, "PUT", zone, inner)
	return err
}

// roundVolume converts a dB level to the receiver's fixed-point encoding,
// rounded to the nearest 0.5 dB step: -35.3 dB → -355.
func roundVolume(db float64) int {
	return int(math.Round(db*10/volumeStep)) * volumeStep
}

package snapcast

// Types in this file mirror the Snapcast control protocol's JSON documents.
// Field names follow the wire format, which mixes snake_case and camelCase
// (e.g. "stream_id" but "lastSeen"); tags are explicit everywhere so the
// structs survive a gofmt of the protocol docs.

// Volume is a client volume setting.
type Volume struct {
	Muted   bool `json:"muted"`
	Percent int  `json:"percent"`
}

// ClientConfig holds a client's adjustable settings.
type ClientConfig struct {
	Instance int    `json:"instance"`
	Latency  int    `json:"latency"`
	Name     string `json:"name"`
	Volume   Volume `json:"volume"`
}

// Host describes the machine a client or server runs on.
type Host struct {
	Arch string `json:"arch"`
	IP   string `json:"ip"`
	Mac  string `json:"mac"`
	Name string `json:"name"`
	OS   string `json:"os"`
}

// LastSeen is the timestamp a client was last heard from.
type LastSeen struct {
	Sec  int64 `json:"sec"`
	Usec int64 `json:"usec"`
}

// ClientInfo describes the snapclient software on a device.
type ClientInfo struct {
	Name            string `json:"name"`
	ProtocolVersion int    `json:"protocolVersion"`
	Version         string `json:"version"`
}

// Client is one playback device connected to the audio server.
type Client struct {
	Config     ClientConfig `json:"config"`
	Connected  bool         `json:"connected"`
	Host       Host         `json:"host"`
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	LastSeen   LastSeen     `json:"lastSeen"`
	Snapclient ClientInfo   `json:"snapclient"`
}

// Group is a set of clients playing the same stream. Group ids are the
// opaque strings hub subscribers join as group names.
type Group struct {
	Clients  []Client `json:"clients"`
	ID       string   `json:"id"`
	Muted    bool     `json:"muted"`
	Name     string   `json:"name"`
	StreamID string   `json:"stream_id"`

	// GroupVolume is computed by ServerGetStatus as the rounded mean of
	// the member clients' volume percents; it is not a server field.
	GroupVolume int `json:"group_volume"`
}

// ServerInfo describes the snapserver instance.
type ServerInfo struct {
	Host       Host           `json:"host"`
	Snapserver SnapserverInfo `json:"snapserver"`
}

// SnapserverInfo is the server software version block.
type SnapserverInfo struct {
	ControlProtocolVersion int    `json:"controlProtocolVersion"`
	Name                   string `json:"name"`
	ProtocolVersion        int    `json:"protocolVersion"`
	Version                string `json:"version"`
}

// ArtData is inline cover art attached to stream metadata.
type ArtData struct {
	Data      string `json:"data"`
	Extension string `json:"extension"`
}

// Metadata describes the currently playing track of a stream.
type Metadata struct {
	ArtData  *ArtData `json:"artData,omitempty"`
	ArtURL   string   `json:"artUrl,omitempty"`
	Duration float64  `json:"duration,omitempty"`
	Title    string   `json:"title,omitempty"`
	Artist   []string `json:"artist,omitempty"`
	Album    string   `json:"album,omitempty"`
}

// Properties is a stream's playback capability and metadata block.
type Properties struct {
	CanControl    bool      `json:"canControl"`
	CanGoNext     bool      `json:"canGoNext"`
	CanGoPrevious bool      `json:"canGoPrevious"`
	CanPause      bool      `json:"canPause"`
	CanPlay       bool      `json:"canPlay"`
	CanSeek       bool      `json:"canSeek"`
	Metadata      *Metadata `json:"metadata,omitempty"`
}

// StreamURI is the source location of a stream.
type StreamURI struct {
	Raw      string            `json:"raw"`
	Scheme   string            `json:"scheme"`
	Host     string            `json:"host"`
	Path     string            `json:"path"`
	Fragment string            `json:"fragment"`
	Query    map[string]string `json:"query"`
}

// Stream is one audio source on the server.
type Stream struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	URI        StreamURI   `json:"uri"`
	Properties *Properties `json:"properties,omitempty"`
}

// ServerStatus is the full server document returned by Server.GetStatus.
type ServerStatus struct {
	Groups  []Group    `json:"groups"`
	Server  ServerInfo `json:"server"`
	Streams []Stream   `json:"streams"`
}

// GroupByID returns the group with the given id, or nil if absent.
func (s *ServerStatus) GroupByID(id string) *Group {
	for i := range s.Groups {
		if s.Groups[i].ID == id {
			return &s.Groups[i]
		}
	}
	return nil
}

// GroupForClient returns the group containing the client with the given id,
// or nil if no group has such a member.
func (s *ServerStatus) GroupForClient(clientID string) *Group {
	for i := range s.Groups {
		for j := range s.Groups[i].Clients {
			if s.Groups[i].Clients[j].ID == clientID {
				return &s.Groups[i]
			}
		}
	}
	return nil
}

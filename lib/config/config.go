// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
	"github.com/bureau-foundation/holdfast/lib/socket"
)

// EnvConfig names the environment variable Load reads.
const EnvConfig = "HOLDFAST_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the master configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment" json:"environment"`

	// Authority configures the authority process.
	Authority AuthorityConfig `yaml:"authority" json:"authority"`

	// Interaction configures the drawing controller on peers.
	Interaction InteractionConfig `yaml:"interaction" json:"interaction"`

	// World is the scene the authority seeds at startup.
	World WorldConfig `yaml:"world" json:"world"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty" json:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty" json:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty" json:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Authority   *AuthorityConfig   `yaml:"authority,omitempty" json:"authority,omitempty"`
	Interaction *InteractionConfig `yaml:"interaction,omitempty" json:"interaction,omitempty"`
}

// AuthorityConfig configures the authority.
type AuthorityConfig struct {
	// ListenTCP is the address for CBOR-over-TCP peers. Empty disables.
	// Default: :7400
	ListenTCP string `yaml:"listen_tcp" json:"listen_tcp"`

	// ListenWebSocket is the HTTP address serving /session for
	// WebSocket peers. Empty disables.
	ListenWebSocket string `yaml:"listen_websocket" json:"listen_websocket"`

	// ListenWebRTC is the HTTP address serving /offer for WebRTC
	// signaling. Empty disables.
	ListenWebRTC string `yaml:"listen_webrtc" json:"listen_webrtc"`

	// ICEServers are STUN/TURN URLs for the WebRTC listener. Empty
	// means host candidates only, which is enough on a LAN.
	ICEServers []string `yaml:"ice_servers" json:"ice_servers"`

	// AdminSocket is the Unix socket for operator commands.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/holdfast/admin.sock
	AdminSocket string `yaml:"admin_socket" json:"admin_socket"`

	// RateLimit is the sustained mutation messages per second allowed
	// per peer. Default: 120
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`

	// RateBurst is the token bucket depth. Default: 240
	RateBurst int `yaml:"rate_burst" json:"rate_burst"`

	// OutboxSize is how many outbound messages may queue per peer
	// before the peer is disconnected as too slow. Default: 1024
	OutboxSize int `yaml:"outbox_size" json:"outbox_size"`

	// SnapshotCompression is none, lz4 or zstd. Default: zstd
	SnapshotCompression string `yaml:"snapshot_compression" json:"snapshot_compression"`

	// JoinSecretFile holds the HS256 secret for join tokens. Empty
	// means peers join without a token.
	JoinSecretFile string `yaml:"join_secret_file" json:"join_secret_file"`

	// Advertise publishes the TCP listener over mDNS.
	// Default: true (development), false (production)
	Advertise bool `yaml:"advertise" json:"advertise"`

	// Instance is the mDNS instance name. Default: hostname.
	Instance string `yaml:"instance" json:"instance"`

	// MaxPoints bounds points per line. Default: 4096
	MaxPoints int `yaml:"max_points" json:"max_points"`
}

// InteractionConfig configures the drawing controller.
type InteractionConfig struct {
	// MinPointDistance is the smallest movement, in metres, that
	// appends a point. Default: 0.01
	MinPointDistance float64 `yaml:"min_point_distance" json:"min_point_distance"`

	// ContactLossTimeout ends a stroke when no contact is reported
	// for this long. Default: 250ms
	ContactLossTimeout string `yaml:"contact_loss_timeout" json:"contact_loss_timeout"`

	// Style is the pen's initial style.
	Style StyleConfig `yaml:"style" json:"style"`
}

// StyleConfig is a stroke style in file form.
type StyleConfig struct {
	StartColor string  `yaml:"start_color" json:"start_color"`
	EndColor   string  `yaml:"end_color" json:"end_color"`
	StartWidth float64 `yaml:"start_width" json:"start_width"`
	EndWidth   float64 `yaml:"end_width" json:"end_width"`
}

// WorldConfig is the seeded scene.
type WorldConfig struct {
	Objects []ObjectConfig `yaml:"objects" json:"objects"`
	Sockets []SocketConfig `yaml:"sockets" json:"sockets"`
}

// ObjectConfig seeds one interactable object.
type ObjectConfig struct {
	ID          string     `yaml:"id" json:"id"`
	Position    [3]float64 `yaml:"position" json:"position"`
	Kinematic   bool       `yaml:"kinematic" json:"kinematic"`
	Retrievable *bool      `yaml:"retrievable,omitempty" json:"retrievable,omitempty"`
	MultiHolder bool       `yaml:"multi_holder" json:"multi_holder"`
}

// SocketConfig seeds one socket.
type SocketConfig struct {
	ID       string        `yaml:"id" json:"id"`
	Position [3]float64    `yaml:"position" json:"position"`
	Policy   socket.Policy `yaml:"policy" json:"policy"`
}

// Default returns the default configuration, used as the base before
// the config file is applied.
func Default() *Config {
	return &Config{
		Environment: Development,
		Authority: AuthorityConfig{
			ListenTCP:           ":7400",
			AdminSocket:         "${XDG_RUNTIME_DIR:-/tmp}/holdfast/admin.sock",
			RateLimit:           120,
			RateBurst:           240,
			OutboxSize:          1024,
			SnapshotCompression: "zstd",
			Advertise:           true,
			MaxPoints:           4096,
		},
		Interaction: InteractionConfig{
			MinPointDistance:   0.01,
			ContactLossTimeout: "250ms",
			Style: StyleConfig{
				StartColor: "#000000",
				EndColor:   "#000000",
				StartWidth: 0.005,
				EndWidth:   0.005,
			},
		},
	}
}

// Load loads configuration from the HOLDFAST_CONFIG environment
// variable. There is no fallback if it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvConfig)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your holdfast.yaml config file, or use --config flag", EnvConfig)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: no LAN advertisement.
		if overrides == nil {
			overrides = &ConfigOverrides{Authority: &AuthorityConfig{Advertise: false}}
		}
	}

	if overrides == nil {
		return
	}

	if authority := overrides.Authority; authority != nil {
		if authority.ListenTCP != "" {
			c.Authority.ListenTCP = authority.ListenTCP
		}
		if authority.ListenWebSocket != "" {
			c.Authority.ListenWebSocket = authority.ListenWebSocket
		}
		if authority.ListenWebRTC != "" {
			c.Authority.ListenWebRTC = authority.ListenWebRTC
		}
		if len(authority.ICEServers) > 0 {
			c.Authority.ICEServers = authority.ICEServers
		}
		if authority.AdminSocket != "" {
			c.Authority.AdminSocket = authority.AdminSocket
		}
		if authority.RateLimit != 0 {
			c.Authority.RateLimit = authority.RateLimit
		}
		if authority.RateBurst != 0 {
			c.Authority.RateBurst = authority.RateBurst
		}
		if authority.OutboxSize != 0 {
			c.Authority.OutboxSize = authority.OutboxSize
		}
		if authority.SnapshotCompression != "" {
			c.Authority.SnapshotCompression = authority.SnapshotCompression
		}
		if authority.JoinSecretFile != "" {
			c.Authority.JoinSecretFile = authority.JoinSecretFile
		}
		// Advertise is a bool, so it is always applied from overrides.
		c.Authority.Advertise = authority.Advertise
		if authority.Instance != "" {
			c.Authority.Instance = authority.Instance
		}
		if authority.MaxPoints != 0 {
			c.Authority.MaxPoints = authority.MaxPoints
		}
	}

	if interaction := overrides.Interaction; interaction != nil {
		if interaction.MinPointDistance != 0 {
			c.Interaction.MinPointDistance = interaction.MinPointDistance
		}
		if interaction.ContactLossTimeout != "" {
			c.Interaction.ContactLossTimeout = interaction.ContactLossTimeout
		}
		if interaction.Style.StartColor != "" {
			c.Interaction.Style.StartColor = interaction.Style.StartColor
		}
		if interaction.Style.EndColor != "" {
			c.Interaction.Style.EndColor = interaction.Style.EndColor
		}
		if interaction.Style.StartWidth != 0 {
			c.Interaction.Style.StartWidth = interaction.Style.StartWidth
		}
		if interaction.Style.EndWidth != 0 {
			c.Interaction.Style.EndWidth = interaction.Style.EndWidth
		}
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Authority.AdminSocket = expandVars(c.Authority.AdminSocket, vars)
	c.Authority.JoinSecretFile = expandVars(c.Authority.JoinSecretFile, vars)
}

// DefaultAdminSocket returns the default admin socket path with
// variables expanded.
func DefaultAdminSocket() string {
	return expandVars(Default().Authority.AdminSocket, map[string]string{"HOME": os.Getenv("HOME")})
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// ContactLossTimeoutDuration returns the parsed contact-loss timeout.
func (i InteractionConfig) ContactLossTimeoutDuration() (time.Duration, error) {
	duration, err := time.ParseDuration(i.ContactLossTimeout)
	if err != nil {
		return 0, fmt.Errorf("interaction.contact_loss_timeout: %w", err)
	}
	return duration, nil
}

// Style returns the parsed style.
func (s StyleConfig) Style() (geometry.Style, error) {
	startColor, err := geometry.ParseColor(s.StartColor)
	if err != nil {
		return geometry.Style{}, fmt.Errorf("start_color: %w", err)
	}
	endColor, err := geometry.ParseColor(s.EndColor)
	if err != nil {
		return geometry.Style{}, fmt.Errorf("end_color: %w", err)
	}
	style := geometry.Style{StartColor: startColor, EndColor: endColor, StartWidth: s.StartWidth, EndWidth: s.EndWidth}
	if err := style.Validate(); err != nil {
		return geometry.Style{}, err
	}
	return style, nil
}

// JoinSecret reads the join secret file. It returns nil when no file
// is configured.
func (a AuthorityConfig) JoinSecret() ([]byte, error) {
	if a.JoinSecretFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(a.JoinSecretFile)
	if err != nil {
		return nil, fmt.Errorf("reading join secret: %w", err)
	}
	return bytes.TrimSpace(data), nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	authority := c.Authority
	if authority.ListenTCP == "" && authority.ListenWebSocket == "" && authority.ListenWebRTC == "" {
		errs = append(errs, errors.New("authority: at least one of listen_tcp, listen_websocket, listen_webrtc is required"))
	}
	if authority.AdminSocket == "" {
		errs = append(errs, errors.New("authority.admin_socket is required"))
	}
	if authority.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("authority.rate_limit must be positive, got %g", authority.RateLimit))
	}
	if authority.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("authority.rate_burst must be positive, got %d", authority.RateBurst))
	}
	if authority.OutboxSize <= 0 {
		errs = append(errs, fmt.Errorf("authority.outbox_size must be positive, got %d", authority.OutboxSize))
	}
	if authority.MaxPoints < 2 {
		errs = append(errs, fmt.Errorf("authority.max_points must be at least 2, got %d", authority.MaxPoints))
	}
	if _, err := snapshot.ParseCompression(authority.SnapshotCompression); err != nil {
		errs = append(errs, fmt.Errorf("authority.snapshot_compression: %w", err))
	}
	if c.Environment == Production && authority.JoinSecretFile == "" {
		errs = append(errs, errors.New("authority.join_secret_file is required in production"))
	}

	if c.Interaction.MinPointDistance <= 0 {
		errs = append(errs, fmt.Errorf("interaction.min_point_distance must be positive, got %g", c.Interaction.MinPointDistance))
	}
	if timeout, err := c.Interaction.ContactLossTimeoutDuration(); err != nil {
		errs = append(errs, err)
	} else if timeout <= 0 {
		errs = append(errs, fmt.Errorf("interaction.contact_loss_timeout must be positive, got %s", timeout))
	}
	if _, err := c.Interaction.Style.Style(); err != nil {
		errs = append(errs, fmt.Errorf("interaction.style: %w", err))
	}

	objectIDs := make(map[string]bool)
	for i, object := range c.World.Objects {
		if _, err := ref.ParseObjectID(object.ID); err != nil {
			errs = append(errs, fmt.Errorf("world.objects[%d].id: %w", i, err))
		} else if objectIDs[object.ID] {
			errs = append(errs, fmt.Errorf("world.objects[%d]: duplicate id %q", i, object.ID))
		}
		objectIDs[object.ID] = true
	}
	socketIDs := make(map[string]bool)
	for i, slot := range c.World.Sockets {
		if _, err := ref.ParseSocketID(slot.ID); err != nil {
			errs = append(errs, fmt.Errorf("world.sockets[%d].id: %w", i, err))
		} else if socketIDs[slot.ID] {
			errs = append(errs, fmt.Errorf("world.sockets[%d]: duplicate id %q", i, slot.ID))
		}
		socketIDs[slot.ID] = true
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

package peer

import (
	"errors"
	"fmt"

	"github.com/rescp17/peerdrop/api"
	"github.com/rescp17/peerdrop/pkg/transfer"
	webrtcPkg "github.com/rescp17/peerdrop/pkg/webrtc"
)

// Config holds everything a peer needs besides its collaborators.
type Config struct {
	RelayURL     string           `json:"relay_url"`
	Room         string           `json:"room"`
	OutputDir    string           `json:"output_dir"`
	ChannelLabel string           `json:"channel_label"`
	Transfer     *transfer.Config `json:"transfer"`
	WebRTC       webrtcPkg.Config `json:"-"`
}

// DefaultConfig returns a Config that saves into the working directory.
func DefaultConfig() Config {
	return Config{
		Room:      api.DefaultRoom,
		OutputDir: ".",
		Transfer:  transfer.DefaultConfig(),
		WebRTC:    webrtcPkg.DefaultConfig(),
	}
}

// Validate checks if the configuration values are valid
func (c Config) Validate() error {
	if c.Transfer == nil {
		return errors.New("transfer config is required")
	}
	if err := c.Transfer.Validate(); err != nil {
		return fmt.Errorf("invalid transfer config: %w", err)
	}
	if c.OutputDir == "" {
		return errors.New("output_dir cannot be empty")
	}
	return nil
}

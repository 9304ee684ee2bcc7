// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// ICEConfig holds ICE server configuration for WebRTC PeerConnections.
// The zero value gathers host candidates only, which is enough for
// same-machine and same-LAN sessions.
type ICEConfig struct {
	Servers []webrtc.ICEServer
}

// ICEConfigFromURLs builds a config from STUN/TURN URLs. Username and
// credential apply to every turn: URL and are ignored for stun:.
func ICEConfigFromURLs(urls []string, username, credential string) ICEConfig {
	var config ICEConfig
	for _, url := range urls {
		server := webrtc.ICEServer{URLs: []string{url}}
		if strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:") {
			server.Username = username
			server.Credential = credential
		}
		config.Servers = append(config.Servers, server)
	}
	return config
}

// newPeerConnection creates a PeerConnection with data channel
// detaching enabled (for stream access) and loopback candidates
// included (for same-machine sessions and tests).
func newPeerConnection(config ICEConfig) (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.DetachDataChannels()
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: config.Servers})
}

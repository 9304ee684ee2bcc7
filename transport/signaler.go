// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/pion/webrtc/v4"
)

// OfferPath is where a WebRTCListener accepts SDP offers over HTTP.
const OfferPath = "/offer"

// maxSDPSize bounds an offer or answer body.
const maxSDPSize = 64 << 10

// Signaler delivers a complete SDP offer (all ICE candidates
// embedded) to the authority at address and returns its complete
// answer.
type Signaler interface {
	Exchange(ctx context.Context, address, offer string) (answer string, err error)
}

// Answerer produces an SDP answer for an offer. WebRTCListener is the
// production implementation.
type Answerer interface {
	Answer(ctx context.Context, offer string) (string, error)
}

// HTTPSignaler posts offers to a listener's OfferPath as JSON session
// descriptions.
type HTTPSignaler struct {
	// Client is the HTTP client. Nil means http.DefaultClient.
	Client *http.Client
}

var _ Signaler = (*HTTPSignaler)(nil)

// Exchange posts offer to address, which is either a full URL or a
// bare host:port (given http:// and OfferPath).
func (s *HTTPSignaler) Exchange(ctx context.Context, address, offer string) (string, error) {
	url := address
	if _, _, err := net.SplitHostPort(address); err == nil && !strings.Contains(address, "/") {
		url = "http://" + address + OfferPath
	}
	body, err := json.Marshal(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer})
	if err != nil {
		return "", err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return "", fmt.Errorf("posting offer to %s: %w", url, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return "", fmt.Errorf("posting offer to %s: %s: %s", url, response.Status, strings.TrimSpace(string(detail)))
	}

	var answer webrtc.SessionDescription
	if err := json.NewDecoder(io.LimitReader(response.Body, maxSDPSize)).Decode(&answer); err != nil {
		return "", fmt.Errorf("decoding answer from %s: %w", url, err)
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		return "", fmt.Errorf("signaling response from %s has type %s, want answer", url, answer.Type)
	}
	return answer.SDP, nil
}

// SignalingHandler serves OfferPath for answerer.
func SignalingHandler(answerer Answerer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(OfferPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST an SDP offer", http.StatusMethodNotAllowed)
			return
		}
		var offer webrtc.SessionDescription
		if err := json.NewDecoder(io.LimitReader(r.Body, maxSDPSize)).Decode(&offer); err != nil {
			http.Error(w, "malformed session description", http.StatusBadRequest)
			return
		}
		if offer.Type != webrtc.SDPTypeOffer {
			http.Error(w, "session description is not an offer", http.StatusBadRequest)
			return
		}
		answer, err := answerer.Answer(r.Context(), offer.SDP)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer})
	})
	return mux
}

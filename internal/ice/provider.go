// Package ice builds the STUN/TURN configuration handed to clients before
// call setup. It has no session coupling.
package ice

import (
	"fmt"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNURLs are used when no custom STUN servers are configured.
var DefaultSTUNURLs = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

type Options struct {
	STUNURLs       []string
	TURNURLs       []string
	TURNUsername   string
	TURNCredential string
}

// Config is the payload returned to clients. Field names follow the browser
// RTCConfiguration dictionary.
type Config struct {
	ICEServers         []webrtc.ICEServer `json:"iceServers"`
	ICETransportPolicy string             `json:"iceTransportPolicy"`
	BundlePolicy       string             `json:"bundlePolicy"`
}

// Build validates opts and assembles the ICE server list, one entry per URL.
// Custom STUN URLs replace the defaults. TURN entries follow and carry the
// username and credential when they are set.
func Build(opts Options) (Config, error) {
	stunURLs := opts.STUNURLs
	if len(stunURLs) == 0 {
		stunURLs = DefaultSTUNURLs
	}

	servers := make([]webrtc.ICEServer, 0, len(stunURLs)+len(opts.TURNURLs))
	for _, raw := range stunURLs {
		if err := validateURI(raw, stun.SchemeTypeSTUN, stun.SchemeTypeSTUNS); err != nil {
			return Config{}, err
		}
		servers = append(servers, webrtc.ICEServer{URLs: []string{raw}})
	}

	for _, raw := range opts.TURNURLs {
		if err := validateURI(raw, stun.SchemeTypeTURN, stun.SchemeTypeTURNS); err != nil {
			return Config{}, err
		}
		server := webrtc.ICEServer{URLs: []string{raw}, Username: opts.TURNUsername}
		if opts.TURNCredential != "" {
			server.Credential = opts.TURNCredential
		}
		servers = append(servers, server)
	}

	return Config{
		ICEServers:         servers,
		ICETransportPolicy: webrtc.ICETransportPolicyAll.String(),
		BundlePolicy:       webrtc.BundlePolicyBalanced.String(),
	}, nil
}

func validateURI(raw string, allowed ...stun.SchemeType) error {
	uri, err := stun.ParseURI(raw)
	if err != nil {
		return fmt.Errorf("invalid ice url %q: %w", raw, err)
	}
	for _, s := range allowed {
		if uri.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("invalid ice url %q: unexpected scheme %s", raw, uri.Scheme)
}

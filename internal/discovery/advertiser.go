// Package discovery announces the hub on the local network over DNS-SD.
package discovery

import (
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

type Registration interface {
	Shutdown()
}

// RegisterFunc publishes a service record. It matches zeroconf.Register
// minus the interface list.
type RegisterFunc func(instance, service, domain string, port int, txt []string) (Registration, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string) (Registration, error) {
	var ifaces []net.Interface
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

type Service struct {
	Instance string
	Type     string
	Domain   string
}

type Advertiser struct {
	svc      Service
	register RegisterFunc

	mu  sync.Mutex
	reg Registration
}

func NewAdvertiser(svc Service) *Advertiser {
	return newAdvertiser(svc, zeroconfRegister)
}

func newAdvertiser(svc Service, register RegisterFunc) *Advertiser {
	return &Advertiser{svc: svc, register: register}
}

// Start registers the service on port with props as TXT records. Calling
// Start again replaces the previous registration.
func (a *Advertiser) Start(port int, props map[string]string) error {
	txt := TXTRecords(props)

	reg, err := a.register(a.svc.Instance, a.svc.Type, a.svc.Domain, port, txt)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", a.svc.Type, err)
	}

	a.mu.Lock()
	prev := a.reg
	a.reg = reg
	a.mu.Unlock()

	if prev != nil {
		prev.Shutdown()
	}

	log.Info().
		Str("instance", a.svc.Instance).
		Str("service", a.svc.Type).
		Int("port", port).
		Strs("txt", txt).
		Msg("discovery advertiser registered")
	return nil
}

// Stop withdraws the record. It is safe to call when not started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	reg := a.reg
	a.reg = nil
	a.mu.Unlock()

	if reg == nil {
		return
	}
	reg.Shutdown()
	log.Info().Str("service", a.svc.Type).Msg("discovery advertiser stopped")
}

// TXTRecords renders props as key=value strings in key order.
func TXTRecords(props map[string]string) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	txt := make([]string, 0, len(keys))
	for _, k := range keys {
		txt = append(txt, k+"="+props[k])
	}
	return txt
}

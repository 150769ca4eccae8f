// Package bridge mirrors hub state to an MQTT broker.
//
// Topics, relative to the configured prefix:
//
//	<prefix>/status                           "online" or "offline"
//	<prefix>/hub                              hub metadata as JSON
//	<prefix>/zones/<id>                       zone status as JSON, empty when removed
//	<prefix>/components/<serial>/temperature  last reading
//	<prefix>/errors                           hub and validation errors as JSON
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/zberg/go-nobo/pkg/nobo"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Bridge publishes zone state derived from the Store whenever a
// notification changes it.
type Bridge struct {
	store  *nobo.Store
	pub    Publisher
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. By default the bridge is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithClock replaces the clock used to resolve zone modes.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// New creates a Bridge publishing under prefix.
func New(store *nobo.Store, pub Publisher, prefix string, opts ...Option) *Bridge {
	b := &Bridge{
		store:  store,
		pub:    pub,
		prefix: prefix,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run publishes until ctx is done or notes is closed. Publish failures are
// logged and do not stop the bridge.
func (b *Bridge) Run(ctx context.Context, notes <-chan nobo.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notes:
			if !ok {
				return nil
			}
			b.Handle(n)
		}
	}
}

// Handle publishes the topics affected by one notification.
func (b *Bridge) Handle(n nobo.Notification) {
	switch n.Kind {
	case nobo.NotifyReady:
		b.publish(b.topic("status"), []byte(statusOnline))
		b.publishHub()
		b.publishZones(b.allZones())
	case nobo.NotifyClosed:
		b.publish(b.topic("status"), []byte(statusOffline))
	case nobo.NotifyError:
		b.publishError(n)
	case nobo.NotifyUpdate:
		b.handleUpdate(n.Message)
	}
}

func (b *Bridge) handleUpdate(msg nobo.Message) {
	switch m := msg.(type) {
	case nobo.ZoneMessage:
		b.publishZones([]string{m.Zone.ID})
	case nobo.ZoneRemoved:
		b.publish(b.topic("zones", m.ZoneID), nil)
	case nobo.OverrideMessage:
		if m.Override.TargetType == nobo.TargetZone {
			b.publishZones([]string{m.Override.TargetID})
			return
		}
		b.publishZones(b.allZones())
	case nobo.OverrideRemoved:
		b.publishZones(b.allZones())
	case nobo.WeekProfileMessage:
		b.publishZones(b.zonesUsingProfile(m.Profile.ID))
	case nobo.TemperatureReading:
		b.publish(b.topic("components", m.Serial, "temperature"), []byte(m.Temperature))
		if c, ok := b.store.Component(m.Serial); ok && c.InZone() {
			b.publishZones([]string{c.ZoneID})
		}
	case nobo.HubInfoMessage:
		if m.RespCode == nobo.RespUpdateHubInfo {
			b.publishHub()
		}
	}
}

func (b *Bridge) allZones() []string {
	zones := b.store.Zones()
	ids := make([]string, 0, len(zones))
	for _, z := range zones {
		ids = append(ids, z.ID)
	}
	return ids
}

func (b *Bridge) zonesUsingProfile(profileID string) []string {
	var ids []string
	for _, z := range b.store.Zones() {
		if z.WeekProfileID == profileID {
			ids = append(ids, z.ID)
		}
	}
	return ids
}

func (b *Bridge) publishZones(ids []string) {
	now := b.now()
	for _, id := range ids {
		st, err := b.store.ZoneStatus(id, now)
		if errors.Is(err, nobo.ErrUnknownZone) {
			continue
		}
		if err != nil {
			b.logger.Warn("zone status unavailable", "zone", id, "error", err)
			continue
		}
		b.publishJSON(b.topic("zones", id), st)
	}
}

func (b *Bridge) publishHub() {
	hub, ok := b.store.HubInfo()
	if !ok {
		return
	}
	b.publishJSON(b.topic("hub"), hubPayload{
		Serial:          hub.Serial,
		Name:            hub.Name,
		SoftwareVersion: hub.SoftwareVersion,
		HardwareVersion: hub.HardwareVersion,
		ProductionDate:  hub.ProductionDate,
	})
}

type hubPayload struct {
	Serial          string `json:"serial"`
	Name            string `json:"name"`
	SoftwareVersion string `json:"software_version"`
	HardwareVersion string `json:"hardware_version"`
	ProductionDate  string `json:"production_date"`
}

type errorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

func (b *Bridge) publishError(n nobo.Notification) {
	p := errorPayload{Source: "client"}
	var hubErr *nobo.HubError
	if errors.As(n.Err, &hubErr) {
		p.Source = "hub"
		p.Code = hubErr.Code
		p.Message = hubErr.Message
	} else if n.Err != nil {
		p.Message = n.Err.Error()
		if n.Message != nil {
			p.Code = string(n.Message.Code())
		}
	}
	b.publishJSON(b.topic("errors"), p)
}

func (b *Bridge) publishJSON(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("failed to encode payload", "topic", topic, "error", err)
		return
	}
	b.publish(topic, data)
}

func (b *Bridge) publish(topic string, payload []byte) {
	if err := b.pub.Publish(topic, payload); err != nil {
		b.logger.Warn("publish failed", "topic", topic, "error", err)
		return
	}
	b.logger.Debug("published", "topic", topic, "bytes", len(payload))
}

func (b *Bridge) topic(parts ...string) string {
	return strings.Join(append([]string{b.prefix}, parts...), "/")
}

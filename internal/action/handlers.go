package action

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DeviceController is the capability set an integration plugin exposes for
// home-automation style handlers. The registry depends only on this
// interface; concrete integrations (ha_devices rows, vendor SDKs) are bound
// by the caller.
type DeviceController interface {
	SetState(ctx context.Context, entity string, on bool) error
	SetBrightness(ctx context.Context, entity string, percent int) error
	Status(ctx context.Context, entity string) (on bool, brightness int, err error)
}

var (
	lightToggleOn  = regexp.MustCompile(`(?i)^turn on (?:the )?([\w ]+?) lights?$`)
	lightToggleOff = regexp.MustCompile(`(?i)^turn off (?:the )?([\w ]+?) lights?$`)
	lightSetPct    = regexp.MustCompile(`(?i)^set (?:the )?([\w ]+?) lights? (?:to |at )?(\d{1,3})%?$`)
	lightBare      = regexp.MustCompile(`(?i)^set (?:the )?lights?$`)
)

// slugEntity turns a spoken room name like "bedroom" into the ha_devices
// entity id convention light.bedroom.
func slugEntity(room string) string {
	slug := strings.ToLower(strings.TrimSpace(room))
	slug = strings.ReplaceAll(slug, " ", "_")
	return "light." + slug
}

// RegisterLightHandlers seeds the registry with the bedroom/kitchen/etc.
// light toggle and brightness patterns. The bare "set the lights" entry
// always reports not-applicable; a remembered brightness is applied only
// through the higher-priority entry that RegisterRememberedBrightness adds.
func RegisterLightHandlers(r *Registry, ctrl DeviceController) {
	r.Register(&Entry{
		Name:         "light.toggle_on",
		Pattern:      lightToggleOn,
		Priority:     1.2,
		Capabilities: []string{"home.lights"},
		Entity:       "light",
		Handler: func(ctx context.Context, _, _ string, groups []string) (Result, bool) {
			room := groups[1]
			entity := slugEntity(room)
			if err := ctrl.SetState(ctx, entity, true); err != nil {
				return Result{}, false
			}
			return Result{
				Text:     fmt.Sprintf("Done — %s lights on.", room),
				Entities: []string{entity},
			}, true
		},
	})

	r.Register(&Entry{
		Name:         "light.toggle_off",
		Pattern:      lightToggleOff,
		Priority:     1.2,
		Capabilities: []string{"home.lights"},
		Entity:       "light",
		Handler: func(ctx context.Context, _, _ string, groups []string) (Result, bool) {
			room := groups[1]
			entity := slugEntity(room)
			if err := ctrl.SetState(ctx, entity, false); err != nil {
				return Result{}, false
			}
			return Result{
				Text:     fmt.Sprintf("Done — %s lights off.", room),
				Entities: []string{entity},
			}, true
		},
	})

	r.Register(&Entry{
		Name:         "light.set_brightness",
		Pattern:      lightSetPct,
		Priority:     1.3,
		Capabilities: []string{"home.lights"},
		Entity:       "light",
		Handler: func(ctx context.Context, _, _ string, groups []string) (Result, bool) {
			room := groups[1]
			pct, err := strconv.Atoi(groups[2])
			if err != nil || pct < 0 || pct > 100 {
				return Result{}, false
			}
			entity := slugEntity(room)
			if err := ctrl.SetBrightness(ctx, entity, pct); err != nil {
				return Result{}, false
			}
			return Result{
				Text:     fmt.Sprintf("Done — %s lights at %d%%.", room, pct),
				Entities: []string{entity},
			}, true
		},
	})

	r.Register(&Entry{
		Name:         "light.set_bare",
		Pattern:      lightBare,
		Priority:     0.6, // lower priority: only wins when nothing more specific matches
		Capabilities: []string{"home.lights"},
		Entity:       "light",
		Handler: func(ctx context.Context, _, _ string, _ []string) (Result, bool) {
			// A bare "set the lights" carries no brightness value of its own;
			// it's only actionable once a caller supplies a remembered
			// preference. Signal not-applicable so the driver can retry with
			// a HOT-memory-derived value via RegisterRememberedBrightness.
			return Result{}, false
		},
	})
}

// RegisterRememberedBrightness registers a higher-priority handler that
// answers a bare "set the lights" using a previously retrieved preference
// value (e.g. from a memory HOT hit containing "40%"), letting S6-style
// round trips dispatch at the action layer instead of falling through.
func RegisterRememberedBrightness(r *Registry, ctrl DeviceController, preferredPercent func(ctx context.Context, userID string) (room string, percent int, ok bool)) {
	r.Register(&Entry{
		Name:         "light.set_remembered",
		Pattern:      lightBare,
		Priority:     0.9,
		Capabilities: []string{"home.lights"},
		Entity:       "light",
		Handler: func(ctx context.Context, userID, _ string, _ []string) (Result, bool) {
			room, pct, ok := preferredPercent(ctx, userID)
			if !ok {
				return Result{}, false
			}
			entity := slugEntity(room)
			if err := ctrl.SetBrightness(ctx, entity, pct); err != nil {
				return Result{}, false
			}
			return Result{
				Text:     fmt.Sprintf("Done — %s lights at %d%%, like you like them.", room, pct),
				Entities: []string{entity},
			}, true
		},
	})
}

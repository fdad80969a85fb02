package action

import (
	"context"
	"errors"
	"testing"
)

type fakeController struct {
	on         map[string]bool
	brightness map[string]int
	failEntity string
}

func newFakeController() *fakeController {
	return &fakeController{on: map[string]bool{}, brightness: map[string]int{}}
}

func (f *fakeController) SetState(_ context.Context, entity string, on bool) error {
	if entity == f.failEntity {
		return errors.New("simulated failure")
	}
	f.on[entity] = on
	return nil
}

func (f *fakeController) SetBrightness(_ context.Context, entity string, percent int) error {
	if entity == f.failEntity {
		return errors.New("simulated failure")
	}
	f.brightness[entity] = percent
	return nil
}

func (f *fakeController) Status(_ context.Context, entity string) (bool, int, error) {
	return f.on[entity], f.brightness[entity], nil
}

type fakeAccess struct {
	deny map[string]string // entity -> refusal text
}

func (f *fakeAccess) Allowed(_ context.Context, _, entity string) (bool, string) {
	if refusal, blocked := f.deny[entity]; blocked {
		return false, refusal
	}
	return true, ""
}

func TestDispatchLightToggleOn(t *testing.T) {
	ctrl := newFakeController()
	r := New(nil)
	RegisterLightHandlers(r, ctrl)

	res, ok := r.Dispatch(context.Background(), "user-1", "", "turn on the bedroom lights")
	if !ok {
		t.Fatal("expected dispatch to match")
	}
	if res.Text != "Done — bedroom lights on." {
		t.Errorf("unexpected response: %q", res.Text)
	}
	if !ctrl.on["light.bedroom"] {
		t.Error("expected light.bedroom to be turned on")
	}
}

func TestDispatchLightSetBrightness(t *testing.T) {
	ctrl := newFakeController()
	r := New(nil)
	RegisterLightHandlers(r, ctrl)

	res, ok := r.Dispatch(context.Background(), "user-1", "", "set the bedroom lights to 40%")
	if !ok {
		t.Fatal("expected dispatch to match")
	}
	if res.Text != "Done — bedroom lights at 40%." {
		t.Errorf("unexpected response: %q", res.Text)
	}
	if ctrl.brightness["light.bedroom"] != 40 {
		t.Errorf("expected brightness 40, got %d", ctrl.brightness["light.bedroom"])
	}
}

func TestDispatchFallsThroughOnNoMatch(t *testing.T) {
	ctrl := newFakeController()
	r := New(nil)
	RegisterLightHandlers(r, ctrl)

	var flagged string
	r.OnFallthrough(func(input string) { flagged = input })

	_, ok := r.Dispatch(context.Background(), "user-1", "", "what's the capital of France")
	if ok {
		t.Error("expected no match for an unrelated request")
	}
	if flagged == "" {
		t.Error("expected fallthrough callback to fire")
	}
}

func TestDispatchDeniesAccordingToParentalPolicy(t *testing.T) {
	ctrl := newFakeController()
	access := &fakeAccess{deny: map[string]string{"light": "Ask a grown-up to turn that off for you."}}
	r := New(access)
	RegisterLightHandlers(r, ctrl)

	res, ok := r.Dispatch(context.Background(), "child-1", "", "turn off the bedroom lights")
	if !ok {
		t.Fatal("expected a short-circuit refusal result")
	}
	if res.Text != "Ask a grown-up to turn that off for you." {
		t.Errorf("unexpected refusal text: %q", res.Text)
	}
	if ctrl.on["light.bedroom"] {
		t.Error("handler must not run once access is denied")
	}
}

func TestDispatchRemembersPreferredBrightness(t *testing.T) {
	ctrl := newFakeController()
	r := New(nil)
	RegisterLightHandlers(r, ctrl)
	RegisterRememberedBrightness(r, ctrl, func(_ context.Context, userID string) (string, int, bool) {
		if userID != "user-1" {
			return "", 0, false
		}
		return "bedroom", 40, true
	})

	res, ok := r.Dispatch(context.Background(), "user-1", "", "set the lights")
	if !ok {
		t.Fatal("expected the remembered-brightness handler to match")
	}
	if ctrl.brightness["light.bedroom"] != 40 {
		t.Errorf("expected remembered brightness 40, got %d", ctrl.brightness["light.bedroom"])
	}
	if res.Text == "" {
		t.Error("expected a non-empty confirmation")
	}
}

func TestDispatchPriorityOrdering(t *testing.T) {
	ctrl := newFakeController()
	r := New(nil)
	RegisterLightHandlers(r, ctrl)

	// "set the bedroom lights to 40%" could in principle be read as a bare
	// "set the lights" request too; the higher-priority, more specific
	// brightness pattern must win.
	_, ok := r.Dispatch(context.Background(), "user-1", "", "set the bedroom lights to 40%")
	if !ok {
		t.Fatal("expected dispatch to match")
	}
	if ctrl.brightness["light.bedroom"] != 40 {
		t.Error("expected the specific brightness handler to have run")
	}
}

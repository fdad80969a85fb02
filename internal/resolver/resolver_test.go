package resolver

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestIntentArithmetic(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	tests := []struct {
		input string
		want  string
	}{
		{"what's 2 + 2", "That's 4."},
		{"calculate 10 / 2", "That's 5."},
		{"what is (2 + 3) * 4", "That's 20."},
		{"compute 7 - 10", "That's -3."},
	}

	for _, tt := range tests {
		m, ok := r.Resolve(ctx, "user-1", "", tt.input)
		if !ok {
			t.Errorf("Resolve(%q) did not match", tt.input)
			continue
		}
		if m.Text != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.input, m.Text, tt.want)
		}
	}
}

func TestIntentArithmeticRejectsDivisionByZero(t *testing.T) {
	r := New(nil)
	_, ok := r.Resolve(context.Background(), "user-1", "", "what's 5 / 0")
	if ok {
		t.Error("expected division by zero to not produce a match")
	}
}

func TestIntentArithmeticRejectsOverlongExpression(t *testing.T) {
	r := New(nil)
	long := "what's " + strings.Repeat("1+", 40) + "1"
	_, ok := r.Resolve(context.Background(), "user-1", "", long)
	if ok {
		t.Error("expected overlong expression to be rejected by the length cap")
	}
}

func TestIntentArithmeticRejectsBareNumber(t *testing.T) {
	r := New(nil)
	_, ok := r.Resolve(context.Background(), "user-1", "", "42")
	if ok {
		t.Error("a bare number alone should not be treated as an arithmetic request")
	}
}

func TestIntentGreeting(t *testing.T) {
	r := New(nil)
	m, ok := r.Resolve(context.Background(), "user-1", "Sam", "hello")
	if !ok {
		t.Fatal("expected greeting to match")
	}
	if !strings.Contains(m.Text, "Sam") {
		t.Errorf("expected greeting to include the user's name, got %q", m.Text)
	}
}

func TestIntentGreetingWithoutName(t *testing.T) {
	r := New(nil)
	m, ok := r.Resolve(context.Background(), "user-1", "", "hey")
	if !ok {
		t.Fatal("expected greeting to match")
	}
	if strings.Contains(m.Text, ",") {
		t.Errorf("expected no name suffix without a display name, got %q", m.Text)
	}
}

func TestIntentIdentityHelp(t *testing.T) {
	r := New(nil)
	_, ok := r.Resolve(context.Background(), "user-1", "", "who are you")
	if !ok {
		t.Error("expected identity intent to match")
	}
}

func TestIntentDateTime(t *testing.T) {
	r := New(nil)
	m, ok := r.Resolve(context.Background(), "user-1", "", "what time is it")
	if !ok {
		t.Fatal("expected date/time intent to match")
	}
	if m.Confidence != 1.0 {
		t.Errorf("expected full confidence, got %v", m.Confidence)
	}
}

func TestIntentDayOfWeek(t *testing.T) {
	r := New(nil)
	_, ok := r.Resolve(context.Background(), "user-1", "", "what day is today")
	if !ok {
		t.Error("expected day-of-week intent to match")
	}
}

func TestResolveFallsThroughOnUnmatchedInput(t *testing.T) {
	r := New(nil)
	_, ok := r.Resolve(context.Background(), "user-1", "", "find me a good pizza place nearby")
	if ok {
		t.Error("expected non-closed-set input to fall through")
	}
}

type fakeHistory struct {
	rows []RecentInteraction
}

func (f *fakeHistory) RecentInteractions(ctx context.Context, userID string, limit int) ([]RecentInteraction, error) {
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func TestIntentRecall(t *testing.T) {
	history := &fakeHistory{rows: []RecentInteraction{
		{MessageText: "what did I just say?", CreatedAt: time.Now()},
		{MessageText: "turn on the kitchen lights", CreatedAt: time.Now().Add(-time.Minute)},
	}}
	r := New(history)

	m, ok := r.Resolve(context.Background(), "user-1", "", "what did I just say?")
	if !ok {
		t.Fatal("expected recall intent to match")
	}
	if !strings.Contains(m.Text, "kitchen lights") {
		t.Errorf("expected recall to reference the prior message, got %q", m.Text)
	}
}

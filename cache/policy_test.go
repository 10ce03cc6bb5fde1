package cache

import (
	"errors"
	"testing"
	"time"
)

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"bounded", Policy{MaxSize: 2}, false},
		{"expiring", Policy{MaxAge: time.Minute}, false},
		{"negative size", Policy{MaxSize: -1}, true},
		{"negative age", Policy{MaxAge: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPolicy) {
					t.Errorf("Validate() error = %v, want ErrInvalidPolicy", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestPolicy_Expired(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Policy{MaxAge: 60 * time.Second}

	tests := []struct {
		elapsed time.Duration
		want    bool
	}{
		{0, false},
		{30 * time.Second, false},
		{60 * time.Second, false},
		{61 * time.Second, true},
	}

	for _, tt := range tests {
		if got := p.Expired(created, created.Add(tt.elapsed)); got != tt.want {
			t.Errorf("Expired(+%v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}

	if (Policy{}).Expired(created, created.Add(100*365*24*time.Hour)) {
		t.Error("zero MaxAge should never expire")
	}
}

func TestPolicy_Bounded(t *testing.T) {
	if DefaultPolicy().Bounded() {
		t.Error("DefaultPolicy() should be unbounded")
	}
	if !(Policy{MaxSize: 1}).Bounded() {
		t.Error("MaxSize=1 should be bounded")
	}
}

package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/surpresalabs/surpresa/internal/store"
	"github.com/surpresalabs/surpresa/internal/theme"
)

func TestNeedsUpgrade(t *testing.T) {
	tests := []struct {
		name     string
		themeID  string
		duration int
		status   Status
		want     bool
	}{
		{
			name:     "free theme, free duration, first calendar",
			themeID:  theme.Carnaval,
			duration: 7,
			status:   Status{},
			want:     false,
		},
		{
			name:     "duration over free ceiling",
			themeID:  theme.Carnaval,
			duration: 12,
			status:   Status{},
			want:     true,
		},
		{
			name:     "plus-only theme",
			themeID:  theme.Casamento,
			duration: 5,
			status:   Status{},
			want:     true,
		},
		{
			name:     "free slot already spent",
			themeID:  theme.Natal,
			duration: 7,
			status:   Status{HasUsedFreeCalendar: true},
			want:     true,
		},
		{
			name:     "admin bypasses every rule",
			themeID:  theme.Casamento,
			duration: 30,
			status:   Status{IsAdmin: true, HasUsedFreeCalendar: true},
			want:     false,
		},
		{
			name:     "duration exactly at ceiling is free",
			themeID:  theme.Surpresa,
			duration: FreeDurationCeiling,
			status:   Status{},
			want:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsUpgrade(tc.themeID, tc.duration, tc.status); got != tc.want {
				t.Errorf("NeedsUpgrade(%q, %d, %+v) = %v, want %v", tc.themeID, tc.duration, tc.status, got, tc.want)
			}
		})
	}
}

type stubLister struct {
	calendars []store.Calendar
	err       error
}

func (s stubLister) ListByOwner(ctx context.Context, ownerID int64) ([]store.Calendar, error) {
	return s.calendars, s.err
}

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name      string
		calendars []store.Calendar
		wantUsed  bool
	}{
		{
			name:     "no calendars",
			wantUsed: false,
		},
		{
			name:      "only premium calendars keep the free slot",
			calendars: []store.Calendar{{IsPremium: true}, {IsPremium: true}},
			wantUsed:  false,
		},
		{
			name:      "one non-premium calendar spends the slot",
			calendars: []store.Calendar{{IsPremium: true}, {IsPremium: false}},
			wantUsed:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, err := ComputeStatus(context.Background(), stubLister{calendars: tc.calendars}, 1, false)
			if err != nil {
				t.Fatalf("ComputeStatus() error: %v", err)
			}
			if status.HasUsedFreeCalendar != tc.wantUsed {
				t.Errorf("HasUsedFreeCalendar = %v, want %v", status.HasUsedFreeCalendar, tc.wantUsed)
			}
		})
	}
}

func TestComputeStatusPropagatesError(t *testing.T) {
	wantErr := errors.New("db down")
	_, err := ComputeStatus(context.Background(), stubLister{err: wantErr}, 1, false)
	if !errors.Is(err, wantErr) {
		t.Errorf("ComputeStatus() error = %v, want %v", err, wantErr)
	}
}

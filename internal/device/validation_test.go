package device

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateInfo(t *testing.T) {
	valid := func() *Info {
		return &Info{ID: "bw-1", Name: "Crane", Family: FamilyBuWizz2, ChannelCount: 4}
	}

	tests := []struct {
		name    string
		mutate  func(*Info)
		wantErr error
	}{
		{name: "valid", mutate: func(*Info) {}},
		{name: "missing id", mutate: func(i *Info) { i.ID = " " }, wantErr: ErrInvalidDevice},
		{name: "missing name", mutate: func(i *Info) { i.Name = "" }, wantErr: ErrInvalidName},
		{name: "name too long", mutate: func(i *Info) { i.Name = strings.Repeat("x", 101) }, wantErr: ErrInvalidName},
		{name: "unknown family", mutate: func(i *Info) { i.Family = "rcx" }, wantErr: ErrInvalidFamily},
		{name: "zero channels", mutate: func(i *Info) { i.ChannelCount = 0 }, wantErr: ErrInvalidChannelCount},
		{name: "too many channels", mutate: func(i *Info) { i.ChannelCount = 17 }, wantErr: ErrInvalidChannelCount},
		{name: "address too long", mutate: func(i *Info) { i.Address = strings.Repeat("a", 257) }, wantErr: ErrInvalidDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := valid()
			tt.mutate(info)
			err := ValidateInfo(info)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateInfo() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateInfo() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := ValidateInfo(nil); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("ValidateInfo(nil) error = %v, want ErrInvalidDevice", err)
	}
}

func TestValidateLevel(t *testing.T) {
	tests := []struct {
		family  Family
		level   int
		wantErr error
	}{
		{FamilyBuWizz, 1, nil},
		{FamilyBuWizz, 4, nil},
		{FamilyBuWizz2, 3, nil},
		{FamilyBuWizz2, 0, ErrInvalidLevel},
		{FamilyBuWizz2, 5, ErrInvalidLevel},
		{FamilySBrick, 1, ErrLevelUnsupported},
		{"unknown", 1, ErrLevelUnsupported},
	}
	for _, tt := range tests {
		err := ValidateLevel(tt.family, tt.level)
		if tt.wantErr == nil && err != nil {
			t.Errorf("ValidateLevel(%s, %d) error = %v", tt.family, tt.level, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateLevel(%s, %d) error = %v, want %v", tt.family, tt.level, err, tt.wantErr)
		}
	}
}

func TestFamilyDefaults(t *testing.T) {
	for _, f := range AllFamilies() {
		if !f.Valid() {
			t.Errorf("%s.Valid() = false", f)
		}
		if f.DefaultChannelCount() < 1 {
			t.Errorf("%s.DefaultChannelCount() = %d", f, f.DefaultChannelCount())
		}
	}
	if Family("lego9v").Valid() {
		t.Error("unknown family reported valid")
	}
}

func TestConnectionStateString(t *testing.T) {
	tests := map[ConnectionState]string{
		Disconnected:        "disconnected",
		Connecting:          "connecting",
		Connected:           "connected",
		Disconnecting:       "disconnecting",
		ConnectionState(42): "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("ConnectionState(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("GenerateID() = %q, %q; want unique non-empty", a, b)
	}
}

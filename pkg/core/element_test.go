package core

import "testing"

func TestElementInfo_Label(t *testing.T) {
	tests := []struct {
		name string
		info *ElementInfo
		want string
	}{
		{"nil", nil, ""},
		{"by name", &ElementInfo{Role: "push button", Name: "Save"}, `push button "Save"`},
		{"by description", &ElementInfo{Role: "label", Description: "toaster_description"}, "label [toaster_description]"},
		{"role only", &ElementInfo{Role: "panel"}, "panel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestElementInfo_Ready(t *testing.T) {
	tests := []struct {
		info *ElementInfo
		want bool
	}{
		{nil, false},
		{&ElementInfo{Showing: true, Enabled: true}, true},
		{&ElementInfo{Showing: false, Enabled: true}, false},
		{&ElementInfo{Showing: true, Enabled: false}, false},
	}

	for _, tt := range tests {
		if got := tt.info.Ready(); got != tt.want {
			t.Errorf("%+v.Ready() = %v, want %v", tt.info, got, tt.want)
		}
	}
}

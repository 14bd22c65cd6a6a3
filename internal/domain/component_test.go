package domain

import "testing"

func TestSplitComponent(t *testing.T) {
	tests := []struct {
		input    string
		wantType string
		wantName string
		wantErr  bool
	}{
		{input: "mod_forum", wantType: "mod", wantName: "forum"},
		{input: "forum", wantType: "mod", wantName: "forum"},
		{input: "local_my_plugin", wantType: "local", wantName: "my_plugin"},
		{input: " Block_HTML ", wantType: "block", wantName: "html"},
		{input: "qtype_ddwtos", wantType: "qtype", wantName: "ddwtos"},
		{input: "", wantErr: true},
		{input: "core", wantErr: true},
		{input: "core_admin", wantErr: true},
		{input: "mod_", wantErr: true},
		{input: "mod_9lives", wantErr: true},
		{input: "_forum", wantErr: true},
		{input: "mod-forum", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			gotType, gotName, err := SplitComponent(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SplitComponent(%q) expected error, got %q/%q", tt.input, gotType, gotName)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitComponent(%q) unexpected error: %v", tt.input, err)
			}
			if gotType != tt.wantType || gotName != tt.wantName {
				t.Errorf("SplitComponent(%q) = %q/%q, want %q/%q", tt.input, gotType, gotName, tt.wantType, tt.wantName)
			}
		})
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input   string
		want    Target
		pinned  bool
		wantErr bool
	}{
		{input: "mod_forum", want: Target{Component: "mod_forum"}},
		{input: "forum", want: Target{Component: "mod_forum"}},
		{input: "mod_forum:2025041400", want: Target{Component: "mod_forum", Version: 2025041400}, pinned: true},
		{input: "mod_forum:", want: Target{Component: "mod_forum"}},
		{input: "forum: ", want: Target{Component: "mod_forum"}},
		{input: "mod_forum:latest", wantErr: true},
		{input: "mod_forum:0", wantErr: true},
		{input: ":2025041400", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTarget(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTarget(%q) expected error, got %+v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTarget(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTarget(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
			if got.Pinned() != tt.pinned {
				t.Errorf("Pinned() = %v, want %v", got.Pinned(), tt.pinned)
			}
		})
	}
}

func TestTargetString(t *testing.T) {
	if got := (Target{Component: "mod_forum"}).String(); got != "mod_forum" {
		t.Errorf("String() = %q", got)
	}
	if got := (Target{Component: "mod_forum", Version: 2025041400}).String(); got != "mod_forum:2025041400" {
		t.Errorf("String() = %q", got)
	}
}

func TestRemoteInstallableName(t *testing.T) {
	if got := (RemoteInstallable{Component: "block_html"}).Name(); got != "html" {
		t.Errorf("Name() = %q, want html", got)
	}
	if got := (RemoteInstallable{Component: "core"}).Name(); got != "core" {
		t.Errorf("Name() fallback = %q, want core", got)
	}
}

package database

import "testing"

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{
			name:        "up migration",
			filename:    "20260210_120000_initial_schema.up.sql",
			wantVersion: "20260210_120000",
			wantUp:      true,
			wantOK:      true,
		},
		{
			name:        "down migration",
			filename:    "20260210_120000_initial_schema.down.sql",
			wantVersion: "20260210_120000",
			wantUp:      false,
			wantOK:      true,
		},
		{
			name:        "multi word description",
			filename:    "20260301_080000_add_event_indexes.up.sql",
			wantVersion: "20260301_080000",
			wantUp:      true,
			wantOK:      true,
		},
		{name: "not sql", filename: "README.md", wantOK: false},
		{name: "no direction suffix", filename: "20260210_120000_schema.sql", wantOK: false},
		{name: "missing timestamp", filename: "20260210.up.sql", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if isUp != tt.wantUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantUp)
			}
		})
	}
}

func TestMigrationName(t *testing.T) {
	if got := migrationName("20260210_120000_initial_schema.up.sql"); got != "initial_schema" {
		t.Errorf("migrationName() = %q, want %q", got, "initial_schema")
	}
	if got := migrationName("odd.up.sql"); got != "odd" {
		t.Errorf("migrationName() fallback = %q, want %q", got, "odd")
	}
}

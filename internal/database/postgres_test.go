package database

import "testing"

func TestMigrationVersion(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"001_initial_schema.sql", 1},
		{"012_add_index.sql", 12},
		{"000_bad.sql", 0},
		{"README.md", 0},
		{"abc_initial.sql", 0},
		{"001initial.sql", 0},
		{"002_notes.txt", 0},
	}

	for _, tc := range tests {
		if got := migrationVersion(tc.name); got != tc.want {
			t.Errorf("migrationVersion(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}

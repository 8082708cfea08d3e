package players_test

import (
	"testing"

	"mps/internal/players"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: ""},
		{name: "plain word", raw: "example", want: "Example"},
		{
			name: "release filename",
			raw:  "/films/The.Example.2024.1080p.BluRay.x264-GROUP.mkv",
			want: "The Example 2024",
		},
		{
			name: "underscores and dashes",
			raw:  "some_great_film-extended_cut.mp4",
			want: "Some Great Film Extended Cut",
		},
		{
			name: "brackets stripped",
			raw:  "[Subs] Example Show 01 (720p).mkv",
			want: "Subs Example Show 01",
		},
		{
			name: "apostrophe preserved",
			raw:  "Don't.Look.mkv",
			want: "Don't Look",
		},
		{
			name: "webrip junk dropped",
			raw:  "Example.S01E02.WEBRip.x265.mkv",
			want: "Example S01E02",
		},
		{
			name: "existing capitals kept",
			raw:  "ABC News Special.mkv",
			want: "ABC News Special",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := players.DeriveTitle(tc.raw); got != tc.want {
				t.Fatalf("DeriveTitle(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

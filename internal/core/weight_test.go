package core

import "testing"

func TestParseWeight(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2.5", "2.5"},
		{" 1,25 ", "1.25"},
		{"3", "3"},
		{"", "0"},
		{"abc", "0"},
		{"-4", "0"},
		{"1.005", "1.01"},
		{"1,000.5", "1"},
		{"2.5 kg", "2.5"},
		{"1,5kg", "1.5"},
		{"1.234,5", "1.23"},
		{"7 Kg", "7"},
		{".5", "0.5"},
		{"3.", "3"},
		{"+2", "2"},
		{"1e1", "10"},
		{"2e", "2"},
		{"kg 2", "0"},
		{"-", "0"},
		{".", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := ParseWeight(tc.in).String(); got != tc.want {
				t.Fatalf("ParseWeight(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

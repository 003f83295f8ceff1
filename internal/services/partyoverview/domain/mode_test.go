package domain

import "testing"

func TestNextModeCycle(t *testing.T) {
	t.Parallel()

	want := []FilterMode{ShowVisible, ShowHidden, ShowMore, ShowAll}
	mode := ShowAll
	for idx, expected := range want {
		mode = NextMode(mode)
		if mode != expected {
			t.Fatalf("step %d = %s, want %s", idx+1, mode, expected)
		}
	}
}

func TestNextModeReturnsToStartEveryFourSteps(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 40; n++ {
		mode := ShowAll
		for i := 0; i < n; i++ {
			mode = NextMode(mode)
		}
		if (mode == ShowAll) != (n%4 == 0) {
			t.Fatalf("after %d steps mode = %s", n, mode)
		}
	}
}

func TestParseFilterMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    FilterMode
		wantErr bool
	}{
		{in: "all", want: ShowAll},
		{in: " Visible ", want: ShowVisible},
		{in: "hidden", want: ShowHidden},
		{in: "more", want: ShowMore},
		{in: "none", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseFilterMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseFilterMode(%q) error = nil, want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseFilterMode(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseFilterMode(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestFilterModeTextRoundTrip(t *testing.T) {
	t.Parallel()

	text, err := ShowMore.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var mode FilterMode
	if err := mode.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if mode != ShowMore {
		t.Fatalf("mode = %s, want more", mode)
	}
	if _, err := FilterMode(9).MarshalText(); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

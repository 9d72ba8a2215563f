package proto

import "testing"

func TestParseSizeText(t *testing.T) {
	tests := []struct {
		text string
		want uint64
	}{
		{"9600", 9600},
		{"250k", 250000},
		{"1M", 1000000},
		{" 2g ", 2000000000},
	}
	for _, tc := range tests {
		got, err := ParseSizeText(tc.text)
		if err != nil {
			t.Fatalf("%q: %v", tc.text, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %d, want %d", tc.text, got, tc.want)
		}
	}

	for _, text := range []string{"", "fast", "1x", "k"} {
		if _, err := ParseSizeText(text); err == nil {
			t.Fatalf("%q: invalid rate accepted", text)
		}
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		text string
		want Input
	}{
		{"from-file", InputUnspec},
		{"raw-bytes", InputBytes},
		{"text-format", InputText},
	}
	for _, tc := range tests {
		got, err := ParseInput(tc.text)
		if err != nil {
			t.Fatalf("%q: %v", tc.text, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %v, want %v", tc.text, got, tc.want)
		}
	}
	if _, err := ParseInput("binary"); err == nil {
		t.Fatal("unknown input mode accepted")
	}
}

func TestParseInputBool(t *testing.T) {
	for _, text := range []string{"yes", "TRUE", "on", "1"} {
		got, err := ParseInputBool(text)
		if err != nil || got != InputText {
			t.Fatalf("%q: got %v, %v; want InputText", text, got, err)
		}
	}
	for _, text := range []string{"no", "False", "off", "0"} {
		got, err := ParseInputBool(text)
		if err != nil || got != InputBytes {
			t.Fatalf("%q: got %v, %v; want InputBytes", text, got, err)
		}
	}
	if _, err := ParseInputBool("maybe"); err == nil {
		t.Fatal("invalid boolean accepted")
	}
}

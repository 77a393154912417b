package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"25.50", "25.5", true},
		{"25,50", "25.5", true},
		{" 2.50 ", "2.5", true},
		{"-5", "-5", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"12abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestLooseAmount(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "0"},
		{float64(100), "100"},
		{"50", "50"},
		{" 12.5 ", "12.5"},
		{"", "0"},
		{"n/a", "0"},
		{json.Number("30"), "30"},
		{true, "0"},
	}
	for _, tc := range cases {
		if got := LooseAmount(tc.in); !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%#v: got %s want %s", tc.in, got, tc.want)
		}
	}
}

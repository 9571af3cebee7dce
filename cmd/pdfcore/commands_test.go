package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRanges(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{spec: "", want: []int{0, 1, 2, 3, 4}},
		{spec: "2", want: []int{1}},
		{spec: "1-3,5", want: []int{0, 1, 2, 4}},
		{spec: "4-", want: []int{3, 4}},
		{spec: "0", wantErr: true},
		{spec: "3-2", wantErr: true},
		{spec: "6", wantErr: true},
		{spec: "x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseRanges(tt.spec, 5)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: err = %v", tt.spec, err)
		}
		if diff := cmp.Diff(tt.want, got); !tt.wantErr && diff != "" {
			t.Errorf("%q (-want +got):\n%s", tt.spec, diff)
		}
	}
}

package models

import (
	"reflect"
	"testing"
	"time"
)

func TestParseTripIDs(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    []int64
		wantErr bool
	}{
		{"empty", "  ", nil, false},
		{"list and range", "1,3,5-7", []int64{1, 3, 5, 6, 7}, false},
		{"reversed range", "9-8", nil, false},
		{"reversed range skipped in list", "1,3,5-7,9-8", []int64{1, 3, 5, 6, 7}, false},
		{"spaces and blanks", " 2 , ,4 - 5", []int64{2, 4, 5}, false},
		{"single id range", "4-4", []int64{4}, false},
		{"malformed id", "a", nil, true},
		{"malformed range end", "1-x", nil, true},
		{"range at cap", "0-100000", nil, true},
		{"range under cap", "1-100000", nil, false},
		{"list pushes range over cap", "0,1-100000", nil, true},
		{"max int64 range", "9223372036854775807-9223372036854775807", []int64{9223372036854775807}, false},
		{"range across whole domain", "-9223372036854775808-9223372036854775807", nil, true},
		{"wide range ending at max int64", "0-9223372036854775807", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan struct{})
			var (
				got []int64
				err error
			)
			go func() {
				defer close(done)
				got, err = ParseTripIDs(tt.expr)
			}()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("ParseTripIDs(%q) did not return", tt.expr)
			}

			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTripIDs(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.name == "range under cap" {
				if len(got) != MaxTripIDs || got[0] != 1 || got[len(got)-1] != MaxTripIDs {
					t.Errorf("got %d ids from %d to %d", len(got), got[0], got[len(got)-1])
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTripIDs(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParseNetworkTypes(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"", nil},
		{"LTE", []string{"LTE"}},
		{"LTE, HSPA+ ,,EDGE", []string{"LTE", "HSPA+", "EDGE"}},
		{"LTE,LTE", []string{"LTE"}},
	}
	for _, tt := range tests {
		if got := ParseNetworkTypes(tt.expr); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseNetworkTypes(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestMeasurementQueryFilter(t *testing.T) {
	area := int64(3)
	got, err := MeasurementQuery{AreaID: &area, TripID: "1-2", NetworkType: "LTE,EDGE"}.Filter()
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	want := MeasurementFilter{AreaID: &area, TripIDs: []int64{1, 2}, NetworkTypes: []string{"LTE", "EDGE"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter() = %+v, want %+v", got, want)
	}

	if _, err := (MeasurementQuery{TripID: "1-"}).Filter(); err == nil {
		t.Error("malformed trip expression should fail")
	}
}

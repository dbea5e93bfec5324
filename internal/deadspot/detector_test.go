package deadspot

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/models"
	"github.com/jengzang/coverage-backend-go/internal/spatial"
)

type fakeAreas []models.Area

func (f fakeAreas) NearestWithin(_ context.Context, lat, lon, radius float64) (*models.Area, error) {
	var best *models.Area
	bestDist := math.Inf(1)
	for i := range f {
		d := spatial.HaversineDistance(lat, lon, f[i].Latitude, f[i].Longitude)
		if d <= radius && d < bestDist {
			best, bestDist = &f[i], d
		}
	}
	return best, nil
}

type fakePerf struct {
	scores map[int64]float64
	calls  map[int64]int
}

func (f *fakePerf) Performance(_ context.Context, areaID int64, _ []int64) (float64, error) {
	if f.calls == nil {
		f.calls = make(map[int64]int)
	}
	f.calls[areaID]++
	return f.scores[areaID], nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var origin = spatial.Point{Lat: 60, Lon: 10}

// east returns the point meters east of origin along the route.
func east(meters float64) spatial.Point {
	lat, lon := spatial.DestinationPoint(origin.Lat, origin.Lon, 90, meters)
	return spatial.Point{Lat: lat, Lon: lon}
}

func areaAt(id int64, p spatial.Point) models.Area {
	return models.Area{ID: id, Latitude: p.Lat, Longitude: p.Lon, Accuracy: 5}
}

func TestFindDeadSpots(t *testing.T) {
	a := areaAt(1, east(0))
	b := areaAt(2, east(400))
	weak := areaAt(3, east(200))

	tests := []struct {
		name   string
		areas  fakeAreas
		scores map[int64]float64
		route  []spatial.Point
		want   []models.GapReport
	}{
		{
			name:   "gap between two covered areas",
			areas:  fakeAreas{a, b},
			scores: map[int64]float64{1: 0.9, 2: 0.9},
			route:  []spatial.Point{east(0), east(400)},
			want: []models.GapReport{
				{FromArea: a, ToArea: &b, LengthMeters: spatial.HaversineDistance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)},
			},
		},
		{
			name:   "weak area counts as gap",
			areas:  fakeAreas{a, weak, b},
			scores: map[int64]float64{1: 0.9, 2: 0.9, 3: 0.1},
			route:  []spatial.Point{east(0), east(400)},
			want: []models.GapReport{
				{FromArea: a, ToArea: &b, LengthMeters: spatial.HaversineDistance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)},
			},
		},
		{
			name:   "fully covered",
			areas:  fakeAreas{a},
			scores: map[int64]float64{1: 0.9},
			route:  []spatial.Point{east(0), east(40)},
			want:   []models.GapReport{},
		},
		{
			name:   "trailing gap stays open",
			areas:  fakeAreas{a},
			scores: map[int64]float64{1: 0.9},
			route:  []spatial.Point{east(0), east(300)},
			want: []models.GapReport{
				{FromArea: a, LengthMeters: 300, Open: true},
			},
		},
		{
			name:   "leading gap has no anchor",
			areas:  fakeAreas{b},
			scores: map[int64]float64{2: 0.9},
			route:  []spatial.Point{east(0), east(400)},
			want:   []models.GapReport{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perf := &fakePerf{scores: tt.scores}
			d := NewDetector(tt.areas, perf, nil, quietLogger())
			got, err := d.FindDeadSpots(context.Background(), tt.route, nil, 0.5)
			if err != nil {
				t.Fatalf("FindDeadSpots: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("gaps = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				g, w := got[i], tt.want[i]
				if g.FromArea != w.FromArea || g.Open != w.Open || math.Abs(g.LengthMeters-w.LengthMeters) > 0.01 {
					t.Errorf("gap %d = %+v, want %+v", i, g, w)
				}
				if (g.ToArea == nil) != (w.ToArea == nil) || (g.ToArea != nil && *g.ToArea != *w.ToArea) {
					t.Errorf("gap %d to = %v, want %v", i, g.ToArea, w.ToArea)
				}
			}
			for id, n := range perf.calls {
				if n != 1 {
					t.Errorf("area %d scored %d times, want once per walk", id, n)
				}
			}
		})
	}
}

func TestPolylineRoundTrip(t *testing.T) {
	const encoded = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
	points, err := DecodePolyline(encoded)
	if err != nil {
		t.Fatalf("DecodePolyline: %v", err)
	}
	want := []spatial.Point{{Lat: 38.5, Lon: -120.2}, {Lat: 40.7, Lon: -120.95}, {Lat: 43.252, Lon: -126.453}}
	if len(points) != len(want) {
		t.Fatalf("points = %v, want %v", points, want)
	}
	for i := range want {
		if math.Abs(points[i].Lat-want[i].Lat) > 1e-9 || math.Abs(points[i].Lon-want[i].Lon) > 1e-9 {
			t.Errorf("point %d = %v, want %v", i, points[i], want[i])
		}
	}
	if got := EncodePolyline(want); got != encoded {
		t.Errorf("EncodePolyline = %q, want %q", got, encoded)
	}
}

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint("63.43, 10.39")
	if err != nil || p != (spatial.Point{Lat: 63.43, Lon: 10.39}) {
		t.Errorf("ParsePoint = %v, %v", p, err)
	}
	for _, bad := range []string{"", "63.43", "a,b", "91,0", "0,181"} {
		if _, err := ParsePoint(bad); err == nil {
			t.Errorf("ParsePoint(%q) succeeded, want error", bad)
		}
	}
}

func TestGoogleDirectionsRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("origin") != "38.5,-120.2" || q.Get("destination") != "43.252,-126.453" || q.Get("key") != "secret" {
			http.Error(w, "bad query "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"OK","routes":[{"overview_polyline":{"points":"_p~iF~ps|U_ulLnnqC_mqNvxq`+"`"+`@"}}]}`)
	}))
	defer srv.Close()

	g := NewGoogleDirections("secret\n", srv.URL)
	route, err := g.Route(context.Background(), spatial.Point{Lat: 38.5, Lon: -120.2}, spatial.Point{Lat: 43.252, Lon: -126.453})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(route) != 3 {
		t.Errorf("route has %d points, want 3", len(route))
	}
}

func TestGoogleDirectionsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("key") {
		case "empty":
			io.WriteString(w, `{"status":"ZERO_RESULTS","routes":[]}`)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	for _, key := range []string{"", "empty", "broken"} {
		_, err := NewGoogleDirections(key, srv.URL).Route(context.Background(), origin, east(100))
		if !errors.Is(err, ErrRouteUnavailable) {
			t.Errorf("key %q: error = %v, want ErrRouteUnavailable", key, err)
		}
	}
}

func TestFindBetweenWithoutProvider(t *testing.T) {
	d := NewDetector(fakeAreas{}, &fakePerf{}, nil, quietLogger())
	if _, err := d.FindBetween(context.Background(), origin, east(100), nil, 0.5); !errors.Is(err, ErrRouteUnavailable) {
		t.Errorf("FindBetween error = %v, want ErrRouteUnavailable", err)
	}
}

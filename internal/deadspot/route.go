package deadspot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/jengzang/coverage-backend-go/internal/spatial"
)

// DefaultDirectionsURL is the Google Directions JSON endpoint.
const DefaultDirectionsURL = "https://maps.googleapis.com/maps/api/directions/json"

const directionsTimeout = 20 * time.Second

// ErrRouteUnavailable is matched by every failure to obtain a route.
var ErrRouteUnavailable = errors.New("route unavailable")

// RouteProvider returns the geometry of a route between two points.
type RouteProvider interface {
	Route(ctx context.Context, origin, destination spatial.Point) ([]spatial.Point, error)
}

// GoogleDirections fetches routes from the Google Directions API.
type GoogleDirections struct {
	baseURL string
	key     string
	client  *http.Client
}

// NewGoogleDirections creates a client. An empty baseURL uses DefaultDirectionsURL.
func NewGoogleDirections(key, baseURL string) *GoogleDirections {
	if baseURL == "" {
		baseURL = DefaultDirectionsURL
	}
	return &GoogleDirections{
		baseURL: baseURL,
		key:     strings.TrimSpace(key),
		client:  &http.Client{Timeout: directionsTimeout},
	}
}

// LoadAPIKey reads the API key from a file. A missing file yields an empty key.
func LoadAPIKey(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read directions key: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

// Route implements RouteProvider.
func (g *GoogleDirections) Route(ctx context.Context, origin, destination spatial.Point) ([]spatial.Point, error) {
	if g.key == "" {
		return nil, fmt.Errorf("%w: no directions API key", ErrRouteUnavailable)
	}

	q := url.Values{}
	q.Set("origin", formatPoint(origin))
	q.Set("destination", formatPoint(destination))
	q.Set("key", g.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRouteUnavailable, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRouteUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %s: %s", ErrRouteUnavailable, resp.Status, strings.TrimSpace(string(b)))
	}

	var body directionsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrRouteUnavailable, err)
	}
	if len(body.Routes) == 0 {
		msg := body.Status
		if body.ErrorMessage != "" {
			msg += ": " + body.ErrorMessage
		}
		return nil, fmt.Errorf("%w: no route (%s)", ErrRouteUnavailable, msg)
	}

	route, err := DecodePolyline(body.Routes[0].OverviewPolyline.Points)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRouteUnavailable, err)
	}
	return route, nil
}

// DecodePolyline decodes an encoded polyline with precision 5.
func DecodePolyline(encoded string) ([]spatial.Point, error) {
	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing bytes", len(rest))
	}
	points := make([]spatial.Point, len(coords))
	for i, c := range coords {
		points[i] = spatial.Point{Lat: c[0], Lon: c[1]}
	}
	return points, nil
}

// EncodePolyline encodes points with precision 5.
func EncodePolyline(points []spatial.Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// ParsePoint parses "lat,lng".
func ParsePoint(s string) (spatial.Point, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return spatial.Point{}, fmt.Errorf("invalid point %q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return spatial.Point{}, fmt.Errorf("invalid latitude in %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil || lon < -180 || lon > 180 {
		return spatial.Point{}, fmt.Errorf("invalid longitude in %q", s)
	}
	return spatial.Point{Lat: lat, Lon: lon}, nil
}

func formatPoint(p spatial.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

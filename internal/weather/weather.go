// Package weather fetches current conditions used to enrich assigned missions.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

// Fallback is used when a farmer has no location on file or geocoding finds nothing.
var Fallback = Place{Name: "Delhi", Point: models.GeoPoint{Lat: 28.6139, Lon: 77.2090}}

type Place struct {
	Name  string
	Point models.GeoPoint
}

// Conditions are the current observations at a place.
type Conditions struct {
	Location        string  `json:"location"`
	TempC           int     `json:"temp"`
	Humidity        int     `json:"humidity"`
	Description     string  `json:"weather"`
	Main            string  `json:"weatherMain"`
	WindSpeed       float64 `json:"windSpeed"`
	RainProbability int     `json:"rainProbability"`
}

// Summary renders the conditions for a generation prompt.
func (c Conditions) Summary() string {
	return fmt.Sprintf("Current weather in %s: %d°C, %d%% humidity, %s. Wind: %.1f m/s. Rain probability: %d%%.",
		c.Location, c.TempC, c.Humidity, c.Description, c.WindSpeed, c.RainProbability)
}

// Trigger is a weather condition that should steer the next mission.
type Trigger struct {
	Type       string `json:"type"`
	Urgency    string `json:"urgency"`
	Suggestion string `json:"suggestion"`
}

// Advisory renders the trigger as the text attached to a mission.
func (t Trigger) Advisory() string {
	return t.Type + ": " + t.Suggestion
}

// TriggerFor returns the first matching condition, or nil in ordinary weather.
func TriggerFor(c Conditions) *Trigger {
	switch {
	case c.TempC > 35:
		return &Trigger{"HEAT_PROTECTION", "HIGH", "Extreme heat - protect crops with shade/mulching"}
	case c.RainProbability > 70:
		return &Trigger{"RAIN_PREPARATION", "HIGH", "Heavy rain expected - prepare drainage and cover"}
	case c.Humidity < 30:
		return &Trigger{"IRRIGATION_URGENT", "MEDIUM", "Low humidity - increase irrigation"}
	case c.Humidity > 85:
		return &Trigger{"DISEASE_PREVENTION", "MEDIUM", "High humidity - monitor for fungal diseases"}
	}
	return nil
}

type Client interface {
	// Resolve turns a farm location or a place name into coordinates.
	Resolve(ctx context.Context, point *models.GeoPoint, name string) (Place, error)
	Current(ctx context.Context, place Place) (*Conditions, error)
}

// NewClient returns an OpenWeatherMap client, or the mock client when apiKey is empty.
func NewClient(baseURL, apiKey string, httpClient *http.Client) Client {
	if apiKey == "" {
		return MockClient{}
	}
	return &openWeather{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: httpClient}
}

type openWeather struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type owmCurrent struct {
	Name string `json:"name"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain map[string]float64 `json:"rain"`
}

type owmPlace struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func (c *openWeather) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("appid", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather request failed: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode weather response: %w", err)
	}
	return nil
}

func (c *openWeather) Resolve(ctx context.Context, point *models.GeoPoint, name string) (Place, error) {
	if point != nil {
		return Place{Name: name, Point: *point}, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Fallback, nil
	}
	// "Village, District, State" often fails; retry with the first component.
	queries := []string{name}
	if i := strings.Index(name, ","); i > 0 {
		queries = append(queries, strings.TrimSpace(name[:i]))
	}
	for _, q := range queries {
		var found []owmPlace
		err := c.get(ctx, "/geo/1.0/direct", url.Values{"q": {q + ",IN"}, "limit": {"1"}}, &found)
		if err != nil {
			return Place{}, err
		}
		if len(found) > 0 {
			return Place{Name: found[0].Name, Point: models.GeoPoint{Lat: found[0].Lat, Lon: found[0].Lon}}, nil
		}
	}
	return Fallback, nil
}

func (c *openWeather) Current(ctx context.Context, place Place) (*Conditions, error) {
	var data owmCurrent
	params := url.Values{
		"lat":   {strconv.FormatFloat(place.Point.Lat, 'f', 4, 64)},
		"lon":   {strconv.FormatFloat(place.Point.Lon, 'f', 4, 64)},
		"units": {"metric"},
	}
	if err := c.get(ctx, "/data/2.5/weather", params, &data); err != nil {
		return nil, err
	}

	rain := 0.0
	if _, raining := data.Rain["1h"]; raining {
		rain = 80
	} else {
		rain = math.Min(data.Clouds.All*0.6, 60)
	}
	cond := &Conditions{
		Location:        place.Name,
		TempC:           int(math.Round(data.Main.Temp)),
		Humidity:        data.Main.Humidity,
		WindSpeed:       data.Wind.Speed,
		RainProbability: int(math.Round(rain)),
	}
	if cond.Location == "" {
		cond.Location = data.Name
	}
	if len(data.Weather) > 0 {
		cond.Description = data.Weather[0].Description
		cond.Main = data.Weather[0].Main
	}
	return cond, nil
}

// MockClient returns fixed mild conditions. It stands in when no API key is configured.
type MockClient struct{}

func (MockClient) Resolve(ctx context.Context, point *models.GeoPoint, name string) (Place, error) {
	if point != nil {
		return Place{Name: name, Point: *point}, nil
	}
	return Fallback, nil
}

func (MockClient) Current(ctx context.Context, place Place) (*Conditions, error) {
	return &Conditions{
		Location:        "Demo Location",
		TempC:           28,
		Humidity:        65,
		Description:     "partly cloudy",
		Main:            "Clouds",
		WindSpeed:       3.5,
		RainProbability: 20,
	}, nil
}

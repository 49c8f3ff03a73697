package nav

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Maps for address abbreviations
var (
	directionAbbrev = map[string]string{
		"north":     "N",
		"south":     "S",
		"east":      "E",
		"west":      "W",
		"northeast": "NE",
		"northwest": "NW",
		"southeast": "SE",
		"southwest": "SW",
	}

	streetTypeAbbrev = map[string]string{
		"avenue":     "Ave",
		"boulevard":  "Blvd",
		"circle":     "Cir",
		"court":      "Ct",
		"drive":      "Dr",
		"expressway": "Expy",
		"heights":    "Hts",
		"highway":    "Hwy",
		"junction":   "Jct",
		"lane":       "Ln",
		"parkway":    "Pkwy",
		"place":      "Pl",
		"plaza":      "Plz",
		"road":       "Rd",
		"square":     "Sq",
		"street":     "St",
		"terrace":    "Ter",
		"trail":      "Trl",
		"turnpike":   "Tpke",
		"way":        "Way",
	}

	stateAbbrev = map[string]string{
		"alabama":        "AL",
		"alaska":         "AK",
		"arizona":        "AZ",
		"arkansas":       "AR",
		"california":     "CA",
		"colorado":       "CO",
		"connecticut":    "CT",
		"delaware":       "DE",
		"florida":        "FL",
		"georgia":        "GA",
		"hawaii":         "HI",
		"idaho":          "ID",
		"illinois":       "IL",
		"indiana":        "IN",
		"iowa":           "IA",
		"kansas":         "KS",
		"kentucky":       "KY",
		"louisiana":      "LA",
		"maine":          "ME",
		"maryland":       "MD",
		"massachusetts":  "MA",
		"michigan":       "MI",
		"minnesota":      "MN",
		"mississippi":    "MS",
		"missouri":       "MO",
		"montana":        "MT",
		"nebraska":       "NE",
		"nevada":         "NV",
		"new hampshire":  "NH",
		"new jersey":     "NJ",
		"new mexico":     "NM",
		"new york":       "NY",
		"north carolina": "NC",
		"north dakota":   "ND",
		"ohio":           "OH",
		"oklahoma":       "OK",
		"oregon":         "OR",
		"pennsylvania":   "PA",
		"rhode island":   "RI",
		"south carolina": "SC",
		"south dakota":   "SD",
		"tennessee":      "TN",
		"texas":          "TX",
		"utah":           "UT",
		"vermont":        "VT",
		"virginia":       "VA",
		"washington":     "WA",
		"west virginia":  "WV",
		"wisconsin":      "WI",
		"wyoming":        "WY",
	}
)

// ErrNoResults is returned when no geocoding results are found
type ErrNoResults struct {
	Query string
}

func (e *ErrNoResults) Error() string {
	return fmt.Sprintf("no results found for query: %s", e.Query)
}

const geocodingPath = "/geocoding/v5/mapbox.places/"

type mapboxContext struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}

type mapboxFeature struct {
	PlaceType  []string   `json:"place_type"`
	Relevance  float64    `json:"relevance"`
	Text       string     `json:"text"`
	Address    string     `json:"address"`
	PlaceName  string     `json:"place_name"`
	Center     [2]float64 `json:"center"`
	Properties struct {
		Address string `json:"address"`
	} `json:"properties"`
	Context []mapboxContext `json:"context"`
}

type mapboxGeocodeResponse struct {
	Features []mapboxFeature `json:"features"`
	Message  string          `json:"message"`
}

// Helper functions for address abbreviations
func abbreviateDirection(word string) string {
	if abbrev, ok := directionAbbrev[strings.ToLower(word)]; ok {
		return abbrev
	}
	return word
}

func abbreviateStreetType(word string) string {
	if abbrev, ok := streetTypeAbbrev[strings.ToLower(word)]; ok {
		return abbrev
	}
	return word
}

func abbreviateState(state string) string {
	if abbrev, ok := stateAbbrev[strings.ToLower(state)]; ok {
		return abbrev
	}
	return state
}

func abbreviateStreetName(street string) string {
	words := strings.Fields(street)
	if len(words) == 0 {
		return street
	}

	// Check if the first word is a direction
	if len(words) > 1 {
		words[0] = abbreviateDirection(words[0])
	}

	// Check if the last word is a street type
	if len(words) > 1 {
		words[len(words)-1] = abbreviateStreetType(words[len(words)-1])
	}

	return strings.Join(words, " ")
}

// contextKind returns the layer of a context entry id such as "place.123".
func contextKind(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

func formatFeature(f mapboxFeature) (name string, formattedAddr string, countryCode string) {
	var city, region, regionCode, postcode string
	for _, c := range f.Context {
		switch contextKind(c.ID) {
		case "place":
			city = c.Text
		case "locality", "neighborhood":
			if city == "" {
				city = c.Text
			}
		case "region":
			region = c.Text
			regionCode = c.ShortCode
		case "postcode":
			postcode = c.Text
		case "country":
			countryCode = strings.ToLower(c.ShortCode)
		}
	}

	isAddress := len(f.PlaceType) > 0 && f.PlaceType[0] == "address"

	// Build the street address with abbreviations
	var streetAddress string
	if isAddress {
		var streetParts []string
		if f.Address != "" {
			streetParts = append(streetParts, f.Address)
		}
		streetParts = append(streetParts, abbreviateStreetName(f.Text))
		streetAddress = strings.Join(streetParts, " ")
		name = streetAddress
	} else {
		name = f.Text
		if f.Properties.Address != "" {
			streetAddress = abbreviateStreetName(f.Properties.Address)
		}
	}

	var addrParts []string
	if streetAddress != "" {
		addrParts = append(addrParts, streetAddress)
	}

	var cityStateParts []string
	if city != "" && city != name {
		cityStateParts = append(cityStateParts, city)
	}

	// Region short codes look like "US-CO"
	state := abbreviateState(region)
	if i := strings.IndexByte(regionCode, '-'); i >= 0 {
		state = regionCode[i+1:]
	}
	if state != "" && postcode != "" {
		cityStateParts = append(cityStateParts, fmt.Sprintf("%s %s", state, postcode))
	} else if state != "" {
		cityStateParts = append(cityStateParts, state)
	} else if postcode != "" {
		cityStateParts = append(cityStateParts, postcode)
	}

	if len(cityStateParts) > 0 {
		addrParts = append(addrParts, strings.Join(cityStateParts, ", "))
	}

	if name == "" {
		name = f.PlaceName
	}
	return name, strings.Join(addrParts, ", "), countryCode
}

// Geocoder searches addresses and places with the Mapbox geocoding API
type Geocoder struct {
	cfg        NavConfig
	httpClient *http.Client
	log        *zap.Logger
}

// NewGeocoder creates a Geocoder for cfg. A nil logger disables logging.
func NewGeocoder(cfg NavConfig, log *zap.Logger) *Geocoder {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Geocoder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// Geocode performs forward geocoding of query restricted to the configured
// country.
func (g *Geocoder) Geocode(ctx context.Context, query string) ([]GeocodeResponse, error) {
	params := url.Values{
		"access_token": {g.cfg.AccessToken},
		"country":      {g.cfg.Country},
		"limit":        {"5"},
		"autocomplete": {"true"},
	}

	apiURL := strings.TrimRight(g.cfg.BaseURL, "/") + geocodingPath +
		url.PathEscape(query) + ".json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("nav: geocode: create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nav: geocode: http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nav: geocode: read response: %w", err)
	}

	var gResp mapboxGeocodeResponse
	if resp.StatusCode != http.StatusOK {
		_ = json.Unmarshal(body, &gResp)
		return nil, &APIError{Status: resp.StatusCode, Message: gResp.Message}
	}
	if err := json.Unmarshal(body, &gResp); err != nil {
		return nil, fmt.Errorf("nav: geocode: decode response: %w", err)
	}

	if len(gResp.Features) == 0 {
		return nil, &ErrNoResults{Query: query}
	}

	results := make([]GeocodeResponse, len(gResp.Features))
	for i, f := range gResp.Features {
		name, addr, country := formatFeature(f)
		results[i] = GeocodeResponse{
			Name:      name,
			Address:   addr,
			Lat:       f.Center[1],
			Lng:       f.Center[0],
			Relevance: f.Relevance,
			Country:   country,
		}
	}

	g.log.Debug("geocode", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

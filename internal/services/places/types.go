package places

// Location is a latitude/longitude pair as returned by the legacy Places API.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geometry wraps the place location.
type Geometry struct {
	Location *Location `json:"location"`
}

// Photo is a legacy photo descriptor; PhotoReference feeds the photo endpoint.
type Photo struct {
	PhotoReference string `json:"photo_reference"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

// Place is a nearby-search candidate.
type Place struct {
	PlaceID          string    `json:"place_id"`
	Name             string    `json:"name"`
	Vicinity         string    `json:"vicinity"`
	FormattedAddress string    `json:"formatted_address"`
	Geometry         *Geometry `json:"geometry"`
	Rating           float64   `json:"rating"`
	UserRatingsTotal int       `json:"user_ratings_total"`
	Photos           []Photo   `json:"photos"`
	Types            []string  `json:"types"`
	PriceLevel       *int      `json:"price_level"`
}

// Address prefers the short vicinity the nearby endpoint returns.
func (p *Place) Address() string {
	if p.Vicinity != "" {
		return p.Vicinity
	}
	return p.FormattedAddress
}

// Coordinates reports the location and whether upstream supplied one.
func (p *Place) Coordinates() (lat, lng float64, ok bool) {
	if p.Geometry == nil || p.Geometry.Location == nil {
		return 0, 0, false
	}
	return p.Geometry.Location.Lat, p.Geometry.Location.Lng, true
}

// FirstPhotoReference returns the representative photo, or nil.
func (p *Place) FirstPhotoReference() *string {
	if len(p.Photos) == 0 || p.Photos[0].PhotoReference == "" {
		return nil
	}
	ref := p.Photos[0].PhotoReference
	return &ref
}

// OpeningHours carries the human readable weekly schedule.
type OpeningHours struct {
	WeekdayText []string `json:"weekday_text"`
}

// Review is an upstream user review.
type Review struct {
	AuthorName              string  `json:"author_name"`
	Rating                  float64 `json:"rating"`
	RelativeTimeDescription string  `json:"relative_time_description"`
	Text                    string  `json:"text"`
}

// Details is the details-endpoint payload. The embedded Place fields are only
// populated when requested through the fields list.
type Details struct {
	Place
	FormattedPhoneNumber string        `json:"formatted_phone_number"`
	OpeningHours         *OpeningHours `json:"opening_hours"`
	Website              string        `json:"website"`
	URL                  string        `json:"url"`
	Reviews              []Review      `json:"reviews"`
}

// NearbyRequest describes a nearby search.
type NearbyRequest struct {
	Lat      float64
	Lng      float64
	Radius   int
	Type     string
	Language string
}

// Image is a fetched photo.
type Image struct {
	ContentType string
	Data        []byte
}

type legacyEnvelope struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type nearbyResponse struct {
	legacyEnvelope
	Results []Place `json:"results"`
}

type detailsResponse struct {
	legacyEnvelope
	Result Details `json:"result"`
}

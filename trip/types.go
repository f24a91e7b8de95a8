// Package trip defines the ski-trip schedule domain: trip dates, member
// travel profiles, the option records produced by each planner, and the
// GeneratedSchedule that the orchestrator assembles and persists.
package trip

import "time"

// Coordinates is a geographic point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Resort identifies the winning resort of a plan.
type Resort struct {
	Name        string       `json:"name"`
	Location    string       `json:"location"`
	FullAddress string       `json:"fullAddress,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Address returns the address every planner is given for the resort:
// the full address when known, otherwise the location.
func (r Resort) Address() string {
	if r.FullAddress != "" {
		return r.FullAddress
	}
	return r.Location
}

// TripDates is the date range of a trip. Dates are YYYY-MM-DD strings.
type TripDates struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Duration  int    `json:"duration"`
	CheckIn   string `json:"checkIn,omitempty"`
	CheckOut  string `json:"checkOut,omitempty"`
}

// MemberTravelProfile is a group member resolved for planning.
type MemberTravelProfile struct {
	MemberID    string       `json:"memberId"`
	MemberName  string       `json:"memberName"`
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	SkillLevel  string       `json:"skillLevel"`
	Budget      string       `json:"budget,omitempty"`
}

// TransportType says whether members travel on their own or together.
type TransportType string

const (
	TransportIndividual TransportType = "individual"
	TransportGroup      TransportType = "group"
)

// Cost is a price split into total and per-person amounts.
type Cost struct {
	Total     float64 `json:"total"`
	PerPerson float64 `json:"perPerson"`
}

// TransportationOption is one way for the group to reach the resort.
type TransportationOption struct {
	ID           string        `json:"id" validate:"required"`
	Type         TransportType `json:"type" validate:"oneof=individual group"`
	Method       string        `json:"method" validate:"required"`
	Description  string        `json:"description"`
	Cost         Cost          `json:"cost"`
	Duration     string        `json:"duration"`
	MeetingPoint *string       `json:"meetingPoint,omitempty"`
	Route        *string       `json:"route,omitempty"`
	Members      []string      `json:"members"`
}

// AccommodationType is the kind of lodging.
type AccommodationType string

const (
	AccommodationAirbnb AccommodationType = "airbnb"
	AccommodationLodge  AccommodationType = "lodge"
	AccommodationHotel  AccommodationType = "hotel"
)

// Availability records whether a property could be confirmed for the dates.
type Availability struct {
	Available bool   `json:"available"`
	CheckIn   string `json:"checkIn"`
	CheckOut  string `json:"checkOut"`
}

// AccommodationOption is one lodging candidate near the resort.
type AccommodationOption struct {
	ID                string            `json:"id" validate:"required"`
	Name              string            `json:"name" validate:"required"`
	Address           string            `json:"address" validate:"required"`
	Type              AccommodationType `json:"type" validate:"oneof=airbnb lodge hotel"`
	PricePerPerson    float64           `json:"pricePerPerson"`
	TotalPrice        float64           `json:"totalPrice"`
	Availability      Availability      `json:"availability"`
	BookingLink       *string           `json:"bookingLink,omitempty"`
	Photos            []string          `json:"photos"`
	ProximityToSlopes string            `json:"proximityToSlopes"`
	Amenities         []string          `json:"amenities,omitempty"`
}

// Difficulty is a slope rating. Tiers are ordered from easiest to hardest.
type Difficulty string

const (
	GreenCircle        Difficulty = "Green Circle"
	BlueSquare         Difficulty = "Blue Square"
	BlackDiamond       Difficulty = "Black Diamond"
	DoubleBlackDiamond Difficulty = "Double Black Diamond"
)

var difficultyRank = map[Difficulty]int{
	GreenCircle:        1,
	BlueSquare:         2,
	BlackDiamond:       3,
	DoubleBlackDiamond: 4,
}

// Rank returns the tier position (1 = easiest) or 0 for unknown ratings.
func (d Difficulty) Rank() int {
	return difficultyRank[d]
}

// IsValid reports whether d is one of the four tiers.
func (d Difficulty) IsValid() bool {
	return d.Rank() > 0
}

// Slope is a named run at the resort.
type Slope struct {
	Name       string     `json:"name" validate:"required"`
	Difficulty Difficulty `json:"difficulty" validate:"oneof='Green Circle' 'Blue Square' 'Black Diamond' 'Double Black Diamond'"`
	Conditions *string    `json:"conditions,omitempty"`
	Length     *string    `json:"length,omitempty"`
	Elevation  *string    `json:"elevation,omitempty"`
}

// MemberSlopes is the afternoon recommendation for one member.
type MemberSlopes struct {
	MemberName        string  `json:"memberName"`
	SkillLevel        string  `json:"skillLevel"`
	RecommendedSlopes []Slope `json:"recommendedSlopes" validate:"dive"`
}

// MorningPlan is the group's morning session.
type MorningPlan struct {
	MeetupTime     string  `json:"meetupTime"`
	MeetupLocation string  `json:"meetupLocation"`
	GroupSlopes    []Slope `json:"groupSlopes" validate:"dive"`
	Description    string  `json:"description"`
}

// AfternoonPlan is the afternoon session, split per member.
type AfternoonPlan struct {
	GroupSlopes      []Slope                 `json:"groupSlopes,omitempty" validate:"dive"`
	IndividualSlopes map[string]MemberSlopes `json:"individualSlopes"`
	Description      string                  `json:"description"`
}

// Lunch is the midday break.
type Lunch struct {
	Time        string  `json:"time"`
	Location    string  `json:"location"`
	Description *string `json:"description,omitempty"`
}

// ApresSki is the optional evening gathering.
type ApresSki struct {
	Time        string `json:"time"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// DayItinerary is the plan for one day of the trip.
type DayItinerary struct {
	Day       int           `json:"day"`
	Date      string        `json:"date"`
	Morning   MorningPlan   `json:"morning"`
	Afternoon AfternoonPlan `json:"afternoon"`
	Lunch     Lunch         `json:"lunch"`
	ApresSki  *ApresSki     `json:"apresSki,omitempty"`
}

// SkiMap is the resort trail map. ImageNotFound is set when no map image
// could be located; ImageURL is then empty.
type SkiMap struct {
	ImageURL      string  `json:"imageUrl,omitempty"`
	ImageNotFound bool    `json:"imageNotFound,omitempty"`
	Slopes        []Slope `json:"slopes" validate:"dive"`
}

// GeneratedSchedule is the complete trip schedule for a plan.
type GeneratedSchedule struct {
	PlanID         string                 `json:"planId"`
	WinningResort  Resort                 `json:"winningResort"`
	TripDates      TripDates              `json:"tripDates"`
	Transportation []TransportationOption `json:"transportation"`
	Accommodation  []AccommodationOption  `json:"accommodation"`
	Itinerary      []DayItinerary         `json:"itinerary"`
	SkiMap         SkiMap                 `json:"skiMap"`
	GeneratedAt    time.Time              `json:"generatedAt"`
	GeneratedBy    string                 `json:"generatedBy"`
}

// Anchor returns the address itinerary meetups are anchored to: the first
// accommodation option. ok is false when there is no accommodation.
func (s *GeneratedSchedule) Anchor() (address string, ok bool) {
	if s == nil || len(s.Accommodation) == 0 {
		return "", false
	}
	return s.Accommodation[0].Address, true
}

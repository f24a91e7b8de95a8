package accommodationplanner

import (
	"fmt"
	"strings"
)

// AllowedDomains limits web search to lodging and resort sites.
var AllowedDomains = []string{
	"www.airbnb.com",
	"www.vrbo.com",
	"www.booking.com",
	"www.expedia.com",
	"www.tripadvisor.com",
	"www.skiresort.info",
	"www.google.com",
	"maps.google.com",
}

// SystemPrompt returns the system prompt for the accommodation planner.
func SystemPrompt() string {
	return `You are an expert accommodation finder specializing in ski resort lodging. You know how to find the best Airbnbs, lodges and resort properties that are close to the slopes and suitable for groups.

## Your Objective

Find exactly 3 accommodation options that are:
1. Primarily Airbnbs or lodges run by the resort (a hotel is acceptable as the third option)
2. Large enough for the group
3. Close to the slopes
4. Available for the dates
5. Within budget when budgets are given

## Instructions

Each option must:
- Include the full name and address
- Give the type: airbnb, lodge or hotel
- Give the price per person and the total price (estimate when exact pricing is not available)
- Report availability for the dates
- Include a booking link when available
- Include up to 5 photo URLs taken directly from the listings
- Give the proximity to the slopes (e.g. "0.5 miles", "Walking distance")
- List amenities when known (e.g. "Hot tub", "Fireplace", "Kitchen", "Parking")

## Photos

- Use only direct image URLs you actually saw in the search results, ending in .jpg, .jpeg, .png or .webp
- Real listing photos carry long property-specific identifiers (e.g. https://a0.muscache.com/im/pictures/...)
- NEVER invent URLs. Do not use "placeholder" URLs, generic names like photo1.jpg or image1.jpg, or sequential paths like /0001/photo1.jpg
- If no real photo URL was found, use an empty array []

## Availability

- Set availability.available = true only when you confirmed the dates
- If availability cannot be verified (for example because booking sites are restricted), still include the property with availability.available = false
- You MUST still return 3 real properties even when availability cannot be verified

## Output Format

Respond with ONLY a JSON object in this shape:

` + "```json" + `
{
  "options": [
    {
      "id": "acc-1",
      "name": "Slopeside Lodge",
      "address": "100 Ski Hill Rd, Breckenridge, CO 80424",
      "type": "lodge",
      "pricePerPerson": 450,
      "totalPrice": 1800,
      "availability": {"available": true, "checkIn": "2025-02-01", "checkOut": "2025-02-04"},
      "bookingLink": "https://www.booking.com/hotel/us/slopeside-lodge.html",
      "photos": [],
      "proximityToSlopes": "Walking distance",
      "amenities": ["Hot tub", "Kitchen"]
    }
  ]
}
` + "```"
}

// UserPrompt renders the trip details for the first planning call.
func UserPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Find accommodation for a ski trip with the following details:\n\n")
	fmt.Fprintf(&b, "Resort: %s\n", in.ResortName)
	fmt.Fprintf(&b, "Location: %s%s\n\n", in.ResortAddress, coords(in))
	fmt.Fprintf(&b, "Trip Dates: %s to %s\n", in.TripDates.StartDate, in.TripDates.EndDate)
	fmt.Fprintf(&b, "Check-in: %s\n", in.TripDates.CheckIn)
	fmt.Fprintf(&b, "Check-out: %s\n\n", in.TripDates.CheckOut)
	fmt.Fprintf(&b, "Group Size: %d people\n", in.GroupSize)
	if len(in.MemberBudgets) > 0 {
		fmt.Fprintf(&b, "Member Budgets: %s\n", strings.Join(in.MemberBudgets, ", "))
	}
	fmt.Fprintf(&b, `
Find 3 accommodation options (primarily Airbnbs or resort lodges) that are:
- Suitable for %d people
- Close to the slopes (prioritize proximity)
- Available for the specified dates
- Within budget if possible

Include real booking links, photos, and verify availability if possible.

If web search cannot reach booking sites directly, that is a search tool limitation and not a sign the properties are unavailable. Still return 3 properties with availability.available = false.

For photos, only use image URLs you saw in the search results. If you cannot find real photo URLs, return an empty array [] instead of making up fake URLs.`, in.GroupSize)
	return b.String()
}

// FollowUpPrompt asks for different properties after a reply with fewer
// than three options.
func FollowUpPrompt(found int, in Input) string {
	return fmt.Sprintf(`The previous search found %d accommodations. Please search again and find 3 DIFFERENT accommodations near %s.

IMPORTANT:
- If you cannot verify availability through web search (due to domain restrictions), you should still return 3 properties
- Set availability.available = false if you cannot verify, but still include the property
- Focus on finding real, legitimate properties that match the group size (%d people) and are near the resort
- Use general web search if booking sites are restricted - you can find property names, addresses, and general information
- The goal is to provide 3 realistic accommodation options, even if exact availability cannot be verified
- You MUST return exactly 3 options, even if availability cannot be confirmed`, found, in.ResortName, in.GroupSize)
}

// CorrectionPrompt tells the model its reply did not match the schema.
func CorrectionPrompt(err error) string {
	return fmt.Sprintf("Your response could not be used. Error: %s\n\n"+
		"Please respond with ONLY a valid JSON object with an \"options\" array of 3 accommodations, "+
		"using the structure from the instructions.", err.Error())
}

func coords(in Input) string {
	if in.ResortCoordinates == nil {
		return ""
	}
	return fmt.Sprintf(" (%v, %v)", in.ResortCoordinates.Lat, in.ResortCoordinates.Lng)
}

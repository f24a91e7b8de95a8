package itineraryplanner

import (
	"fmt"
	"strings"
)

// AllowedDomains limits web search to resort and trail-map sites.
var AllowedDomains = []string{
	"www.skiresort.info",
	"www.onthesnow.com",
	"www.ski.com",
	"www.snowpak.com",
	"www.zrankings.com",
	"www.tripadvisor.com",
}

// SystemPrompt returns the system prompt for the itinerary planner.
func SystemPrompt() string {
	return `You are an expert ski trip itinerary planner with deep knowledge of ski resorts, slopes and difficulty ratings. You build day-by-day schedules that balance group skiing with recommendations for each member's skill level.

## Your Objective

Create one itinerary entry per trip day plus a ski map for the resort.

## Each Day

MORNING:
- A meetup time (e.g. "8:00 AM") and a location based on the accommodation address
- Group slopes the whole group can ski together (consider the lowest skill level)
- A description of the morning

AFTERNOON:
- Optional extra group slopes
- One entry per member in "individualSlopes" with memberId, memberName, skillLevel and recommendedSlopes:
  - Beginner: Green Circle
  - Intermediate: Blue Square
  - Advanced: Black Diamond
  - Expert: Double Black Diamond
- A description of the afternoon

LUNCH:
- A time (typically 12:00 PM - 1:00 PM), an on-mountain restaurant or base lodge, optional description

APRES-SKI:
- A time (typically 3:00 PM - 5:00 PM), a bar, restaurant or gathering spot, and a description

## Ski Map

- Use web search to find a static image URL of the resort's trail map
- If you cannot find one, set "imageNotFound": true and "imageUrl": null. DO NOT provide a wrong map
- List the resort's slopes with name, difficulty, and conditions, length and elevation when known

Difficulty must be exactly one of "Green Circle", "Blue Square", "Black Diamond" or "Double Black Diamond".

## Output Format

Respond with ONLY a JSON object in this shape:

` + "```json" + `
{
  "itinerary": [
    {
      "day": 1,
      "date": "2025-02-01",
      "morning": {
        "meetupTime": "8:00 AM",
        "meetupLocation": "Lobby of the accommodation",
        "groupSlopes": [{"name": "Silverthorne", "difficulty": "Green Circle", "conditions": null, "length": "1.2 mi", "elevation": null}],
        "description": "Warm-up runs together"
      },
      "afternoon": {
        "groupSlopes": null,
        "individualSlopes": [
          {"memberId": "m1", "memberName": "Ana", "skillLevel": "Expert", "recommendedSlopes": [{"name": "Lake Chutes", "difficulty": "Double Black Diamond"}]}
        ],
        "description": "Split up by ability"
      },
      "lunch": {"time": "12:30 PM", "location": "Summit Lodge", "description": null},
      "apresSki": {"time": "4:00 PM", "location": "Base Tavern", "description": "Drinks at the base"}
    }
  ],
  "skiMap": {
    "imageUrl": null,
    "imageNotFound": true,
    "slopes": [{"name": "Silverthorne", "difficulty": "Green Circle"}]
  }
}
` + "```"
}

// UserPrompt renders the trip details for the planning call.
func UserPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Create a day-by-day itinerary for a ski trip with the following details:\n\n")
	fmt.Fprintf(&b, "Resort: %s\n", in.ResortName)
	fmt.Fprintf(&b, "Location: %s", in.ResortAddress)
	if in.ResortCoordinates != nil {
		fmt.Fprintf(&b, " (%v, %v)", in.ResortCoordinates.Lat, in.ResortCoordinates.Lng)
	}
	fmt.Fprintf(&b, "\n\nTrip Dates: %s to %s (%d days)\n\n", in.TripDates.StartDate, in.TripDates.EndDate, in.TripDates.Duration)
	b.WriteString("Members:\n")
	for _, m := range in.Members {
		fmt.Fprintf(&b, "- %s (ID: %s): %s\n", m.MemberName, m.MemberID, m.SkillLevel)
	}
	fmt.Fprintf(&b, "\nAccommodation: %s\n\n", in.AccommodationAddress)
	fmt.Fprintf(&b, `Create a comprehensive itinerary with exactly %d days that:
1. Includes group slopes for everyone to ski together
2. Provides individual slope recommendations based on each member's skill level
3. Coordinates meetup times/locations based on the accommodation
4. Includes lunch breaks and apres-ski activities
5. Pulls a ski map image and lists all available slopes

Prioritize slopes that the group can do together, while also providing personalized recommendations for each skill level.`, in.TripDates.Duration)
	return b.String()
}

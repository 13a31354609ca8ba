// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package venue

import "strings"

// VenueID is a parsed OpenReview venue id such as "ICLR.cc/2024/Conference".
type VenueID struct {
	Org  string
	Year string
	Type string
	Full string
}

// ParseVenueID splits an OpenReview venue id into org, the first four-digit
// path segment, and the last segment.
func ParseVenueID(id string) VenueID {
	parts := strings.Split(id, "/")
	v := VenueID{Org: parts[0], Full: id}
	for _, p := range parts {
		if len(p) == 4 && isDigits(p) {
			v.Year = p
			break
		}
	}
	if len(parts) > 1 {
		v.Type = parts[len(parts)-1]
	}
	return v
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// excludedGroups are OpenReview groups that hold committees or invitations
// rather than papers.
var excludedGroups = []string{
	"/-/",
	"/Program_Chairs",
	"/Area_Chairs",
	"/Reviewers",
	"/Authors",
	"/Ethics_Reviewers",
	"/Senior_Area_Chairs",
	"/Action_Editors",
}

// IsExcludedGroup reports whether id names a committee or invitation group.
func IsExcludedGroup(id string) bool {
	for _, p := range excludedGroups {
		if strings.Contains(id, p) {
			return true
		}
	}
	return false
}

// sideTracks are venue-id fragments of tracks outside the main conference.
var sideTracks = []string{
	"workshop",
	"competition",
	"high_school",
	"creative_ai",
	"demo",
	"datasets_and_benchmarks",
	"education",
	"position_paper",
	"tutorial",
}

// IsMainTrack reports whether id belongs to the main conference track.
// Generic "track" ids are side tracks unless they are "Track/Main".
func IsMainTrack(id string) bool {
	lower := strings.ToLower(id)
	for _, t := range sideTracks {
		if strings.Contains(lower, t) {
			return false
		}
	}
	if strings.Contains(lower, "track") && !strings.Contains(lower, "track/main") {
		return false
	}
	return true
}

// MainTrackVenues filters the OpenReview "venues" group members down to the
// main-track paper venues of org in year, preserving order and dropping
// duplicates.
func MainTrackVenues(members []string, org string, year string) []string {
	prefix := strings.ToLower(org + "/" + year)
	seen := make(map[string]bool)
	var out []string
	for _, m := range members {
		if !strings.HasPrefix(strings.ToLower(m), prefix) {
			continue
		}
		if IsExcludedGroup(m) || !IsMainTrack(m) || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

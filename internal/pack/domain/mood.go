package domain

import "strings"

// MoodPolicy derives a mood and a category from a playlist name. It is a
// deliberately replaceable policy: the default is a lossy keyword heuristic
// with no canonical source of truth.
type MoodPolicy func(playlistName string) (mood, category string)

// DefaultMoodPolicy is the keyword heuristic used when no policy is supplied.
func DefaultMoodPolicy(playlistName string) (string, string) {
	name := strings.ToLower(playlistName)

	switch {
	case containsAny(name, "calm", "relax", "ambient", "chill"):
		return "calm", "ambient"
	case containsAny(name, "energetic", "upbeat", "party", "dance"):
		return "energetic", "entertainment"
	case containsAny(name, "morning", "sunrise", "breakfast"):
		return "fresh", "daypart"
	case containsAny(name, "evening", "night", "sunset"):
		return "mellow", "daypart"
	case containsAny(name, "promo", "ad", "offer", "sale"):
		return "neutral", "promotional"
	case containsAny(name, "info", "news", "menu", "schedule"):
		return "neutral", "informational"
	default:
		return "neutral", "general"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

package ai

import (
	"strings"

	"github.com/kjstillabower/weather-map-service/internal/models"
)

// RuleBased builds a deterministic description from temperature bands and the
// main condition keyword. It never fails.
func RuleBased(snap models.WeatherSnapshot) string {
	temp := snap.Current.Temp
	var b strings.Builder
	b.WriteString("Currently in ")
	b.WriteString(snap.Location.Name)
	b.WriteString(", ")
	b.WriteString(snap.Location.Country)
	b.WriteString(", it's ")
	b.WriteString(formatNumber(temp))
	b.WriteString("°C with ")
	b.WriteString(snap.Current.Weather.Description)
	b.WriteString(".")

	switch {
	case temp < 5:
		b.WriteString(" It's very cold, so bundle up with warm layers if you're heading outside.")
	case temp < 15:
		b.WriteString(" It's cool, so a jacket would be recommended for outdoor activities.")
	case temp < 25:
		b.WriteString(" The temperature is mild, good for most outdoor activities.")
	default:
		b.WriteString(" It's warm, ideal for outdoor activities but remember to stay hydrated.")
	}

	main := strings.ToLower(snap.Current.Weather.Main)
	switch {
	case strings.Contains(main, "rain"):
		b.WriteString(" Don't forget your umbrella!")
	case strings.Contains(main, "snow"):
		b.WriteString(" Be careful of slippery conditions if you're going out.")
	case strings.Contains(main, "clear") && temp > 20:
		b.WriteString(" Sunscreen would be a good idea if you're spending time outside.")
	}
	return b.String()
}

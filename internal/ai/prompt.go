package ai

import (
	"strconv"
	"strings"
	"text/template"

	"github.com/kjstillabower/weather-map-service/internal/models"
)

// SystemMessage frames the model before the weather prompt.
const SystemMessage = "You are a helpful meteorologist providing weather insights."

var promptTemplate = template.Must(template.New("weather").Funcs(template.FuncMap{
	"num": formatNumber,
}).Parse(`As a meteorologist, provide a helpful, informative, and conversational description of the current weather in {{.Location.Name}}, {{.Location.Country}}.

Current conditions:
- Temperature: {{num .Current.Temp}}°C (feels like {{num .Current.FeelsLike}}°C)
- Weather: {{.Current.Weather.Main}} ({{.Current.Weather.Description}})
- Humidity: {{.Current.Humidity}}%
- Wind Speed: {{num .Current.WindSpeed}} m/s

Include:
1. A brief summary of the current conditions
2. How it feels outside (hot, cold, pleasant, etc.)
3. Any relevant advice based on the weather (e.g., umbrella needed, sunscreen recommended)
4. A brief comment on how this weather might affect outdoor activities

Keep your response concise (3-4 sentences) and friendly. Do not include any data beyond what's provided.`))

// RenderPrompt fills the meteorologist prompt from a snapshot.
func RenderPrompt(snap models.WeatherSnapshot) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, snap); err != nil {
		return "", err
	}
	return b.String(), nil
}

// formatNumber prints the shortest decimal form: 3, 3.5, -0.25.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

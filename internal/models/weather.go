package models

// Location identifies the place a snapshot or forecast was reported for.
type Location struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Condition is the primary weather condition reported by the provider.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Conditions holds current observed values in metric units.
type Conditions struct {
	Temp       float64   `json:"temp"`
	FeelsLike  float64   `json:"feels_like"`
	TempMin    float64   `json:"temp_min"`
	TempMax    float64   `json:"temp_max"`
	Humidity   int       `json:"humidity"`
	Pressure   int       `json:"pressure"`
	WindSpeed  float64   `json:"wind_speed"`
	WindDeg    int       `json:"wind_deg"`
	Clouds     int       `json:"clouds"`
	Visibility int       `json:"visibility"`
	Weather    Condition `json:"weather"`
	Dt         int64     `json:"dt"` // unix milliseconds
}

// WeatherSnapshot is the current-conditions record served by /api/weather.
type WeatherSnapshot struct {
	Location Location   `json:"location"`
	Current  Conditions `json:"current"`
}

// ForecastEntry is one step of a forecast series.
type ForecastEntry struct {
	Dt                int64     `json:"dt"` // unix milliseconds
	Temp              float64   `json:"temp"`
	FeelsLike         float64   `json:"feels_like"`
	TempMin           float64   `json:"temp_min"`
	TempMax           float64   `json:"temp_max"`
	Humidity          int       `json:"humidity"`
	Pressure          int       `json:"pressure"`
	WindSpeed         float64   `json:"wind_speed"`
	WindDeg           int       `json:"wind_deg"`
	Clouds            int       `json:"clouds"`
	Weather           Condition `json:"weather"`
	PrecipProbability float64   `json:"pop"`
	DtTxt             string    `json:"dt_txt"`
}

// ForecastSeries is the ordered forecast served by /api/forecast.
type ForecastSeries struct {
	Location Location        `json:"location"`
	Forecast []ForecastEntry `json:"forecast"`
}

// Place is a geocoding search result.
type Place struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

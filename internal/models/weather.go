package models

// HourlyForecast is one point of a day forecast.
type HourlyForecast struct {
	Time      string  `json:"time"`
	Temp      float64 `json:"temp"`
	Condition string  `json:"condition"`
}

// WeatherInfo is a day forecast for the city around a location.
type WeatherInfo struct {
	// CityName is the resolved city (e.g. "Osaka" for "Universal Studios Japan").
	CityName    string           `json:"cityName,omitempty"`
	Temp        float64          `json:"temp"`
	Condition   string           `json:"condition"`
	SnowChance  string           `json:"snowChance"`
	RainChance  string           `json:"rainChance"`
	FeelsLike   float64          `json:"feelsLike"`
	Description string           `json:"description"`
	HighTemp    float64          `json:"highTemp"`
	LowTemp     float64          `json:"lowTemp"`
	Hourly      []HourlyForecast `json:"hourly"`
}

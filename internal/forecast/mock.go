package forecast

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mmynk/tripmate/internal/models"
)

const (
	mockEntries  = 12
	mockStepHour = 2
)

// Mock produces a plausible offline forecast: twelve hourly points two hours
// apart starting at the current hour.
type Mock struct {
	Now    func() time.Time
	Intn   func(n int) int
	Chance func() float64
}

func (m Mock) Forecast(_ context.Context, location, _ string) (*models.WeatherInfo, error) {
	now, intn, chance := time.Now, rand.IntN, rand.Float64
	if m.Now != nil {
		now = m.Now
	}
	if m.Intn != nil {
		intn = m.Intn
	}
	if m.Chance != nil {
		chance = m.Chance
	}

	start := now().Hour()
	hourly := make([]models.HourlyForecast, mockEntries)
	for i := range hourly {
		h := (start + i*mockStepHour) % 24
		condition := "Sun"
		switch {
		case h > 18 || h < 6:
			condition = "Moon"
		case chance() > 0.7:
			condition = "Cloudy"
		}
		hourly[i] = models.HourlyForecast{
			Time:      fmt.Sprintf("%02d:00", h),
			Temp:      float64(15 - intn(5)),
			Condition: condition,
		}
	}

	return &models.WeatherInfo{
		CityName:    location,
		Temp:        15,
		Condition:   "Partly cloudy (simulated)",
		SnowChance:  "0%",
		RainChance:  "10%",
		FeelsLike:   14,
		Description: "The weather service is unreachable; this is simulated data.",
		HighTemp:    23,
		LowTemp:     14,
		Hourly:      hourly,
	}, nil
}

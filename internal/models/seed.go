package models

import "time"

// DateLayout is the calendar-day format used by items and expenses.
const DateLayout = "2006-01-02"

// Seed returns the content a freshly created room starts with: a two-day sample
// itinerary ending today and one sample expense.
func Seed(id, password string, now time.Time) *RoomData {
	day1 := now.AddDate(0, 0, -1).Format(DateLayout)
	day2 := now.Format(DateLayout)

	room := NewRoom(id, password)
	room.MainItinerary = []ItineraryItem{
		{
			ID:           "day1-flight",
			Date:         day1,
			Time:         "10:00",
			Title:        "Flight to Japan",
			LocationName: "Taoyuan International Airport",
			Category:     CategoryTransport,
			TimeZone:     "Asia/Taipei",
		},
		{
			ID:           "day1-arrival",
			Date:         day1,
			Time:         "14:00",
			Title:        "Arrive at Kansai Airport",
			LocationName: "Kansai International Airport, Osaka",
			Category:     CategoryTransport,
			TimeZone:     "Asia/Tokyo",
		},
		{
			ID:           "day2-morning",
			Date:         day2,
			Time:         "09:00",
			Title:        "Universal Studios Japan",
			LocationName: "Universal Studios Japan, Osaka",
			Category:     CategorySightseeing,
			TimeZone:     "Asia/Tokyo",
		},
		{
			ID:           "day2-lunch",
			Date:         day2,
			Time:         "12:30",
			Title:        "Mario themed lunch",
			LocationName: "Kinopio's Cafe",
			Category:     CategoryFood,
			TimeZone:     "Asia/Tokyo",
		},
		{
			ID:           "day2-dinner",
			Date:         day2,
			Time:         "19:00",
			Title:        "Dinner in Dotonbori",
			LocationName: "Dotonbori, Osaka, Japan",
			Category:     CategoryFood,
		},
	}
	room.Expenses = []Expense{
		{
			ID:          "e1",
			Amount:      8400,
			Currency:    CurrencyJPY,
			Description: "USJ tickets",
			Payer:       DefaultMember,
			SplitWith:   []string{},
			Date:        day2,
			Category:    CategorySightseeing,
		},
	}
	return room
}

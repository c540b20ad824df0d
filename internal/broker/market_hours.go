package broker

import (
	"time"

	"github.com/rs/zerolog"
)

// TradingWindow represents a single trading period within a day.
type TradingWindow struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

// ExchangeCalendar defines trading hours and holidays for an exchange.
type ExchangeCalendar struct {
	Code           string
	Name           string
	Timezone       *time.Location
	TradingWindows []TradingWindow
	Holidays2026   []time.Time // year-specific holidays
}

// MarketHoursService answers open/closed and next-session queries. The
// in-memory reference broker only ever trades US equities, so it carries
// just the NYSE calendar; a real adapter connecting to a foreign exchange
// would register its own calendar here instead of growing this one.
type MarketHoursService struct {
	calendars map[string]*ExchangeCalendar
	log       zerolog.Logger
}

// NewMarketHoursService creates a new market hours service.
func NewMarketHoursService(log zerolog.Logger) *MarketHoursService {
	service := &MarketHoursService{
		calendars: make(map[string]*ExchangeCalendar),
		log:       log.With().Str("component", "market_hours").Logger(),
	}

	service.initializeCalendars()
	return service
}

// initializeCalendars sets up trading hours and holidays for the exchanges
// this broker trades against.
func (s *MarketHoursService) initializeCalendars() {
	// US Markets (NYSE, NASDAQ) - conservative core hours: 10:00-15:00 ET,
	// avoiding open/close auction edge cases.
	nyLoc, _ := time.LoadLocation("America/New_York")
	usHolidays := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, nyLoc),   // New Year's Day
		time.Date(2026, 1, 19, 0, 0, 0, 0, nyLoc),  // MLK Day
		time.Date(2026, 2, 16, 0, 0, 0, 0, nyLoc),  // Presidents Day
		time.Date(2026, 4, 10, 0, 0, 0, 0, nyLoc),  // Good Friday
		time.Date(2026, 5, 25, 0, 0, 0, 0, nyLoc),  // Memorial Day
		time.Date(2026, 7, 3, 0, 0, 0, 0, nyLoc),   // Independence Day (observed)
		time.Date(2026, 9, 7, 0, 0, 0, 0, nyLoc),   // Labor Day
		time.Date(2026, 11, 26, 0, 0, 0, 0, nyLoc), // Thanksgiving
		time.Date(2026, 12, 25, 0, 0, 0, 0, nyLoc), // Christmas
	}

	s.calendars["NYSE"] = &ExchangeCalendar{
		Code:     "XNYS",
		Name:     "NYSE",
		Timezone: nyLoc,
		TradingWindows: []TradingWindow{
			{OpenHour: 10, OpenMinute: 0, CloseHour: 15, CloseMinute: 0},
		},
		Holidays2026: usHolidays,
	}
	s.calendars["NASDAQ"] = s.calendars["NYSE"]

	s.log.Info().Int("calendars", len(s.calendars)).Msg("market hours calendars initialized")
}

// getCalendar returns the calendar for an exchange name, defaulting to NYSE
// when the exchange isn't recognized.
func (s *MarketHoursService) getCalendar(exchangeName string) *ExchangeCalendar {
	if cal, ok := s.calendars[exchangeName]; ok {
		return cal
	}
	s.log.Warn().Str("exchange", exchangeName).Msg("unknown exchange, defaulting to NYSE")
	return s.calendars["NYSE"]
}

// IsMarketOpen checks if a market is currently open for trading.
func (s *MarketHoursService) IsMarketOpen(exchangeName string) bool {
	cal := s.getCalendar(exchangeName)
	now := time.Now().In(cal.Timezone)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, cal.Timezone)
	if s.isHoliday(cal, today) {
		return false
	}

	currentMinutes := now.Hour()*60 + now.Minute()
	for _, window := range cal.TradingWindows {
		openMinutes := window.OpenHour*60 + window.OpenMinute
		closeMinutes := window.CloseHour*60 + window.CloseMinute
		if currentMinutes >= openMinutes && currentMinutes < closeMinutes {
			return true
		}
	}
	return false
}

// MarketClock reports open/closed state plus the next open and close instants,
// satisfying the broker contract's market-hours query shape.
type MarketClock struct {
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// Clock returns the current open/closed state for an exchange along with the
// next open and close instants, scanning forward day by day past weekends and
// holidays until it finds the next applicable trading window.
func (s *MarketHoursService) Clock(exchangeName string) MarketClock {
	cal := s.getCalendar(exchangeName)
	now := time.Now().In(cal.Timezone)

	isOpen := s.IsMarketOpen(exchangeName)

	var nextClose time.Time
	if isOpen {
		currentMinutes := now.Hour()*60 + now.Minute()
		for _, window := range cal.TradingWindows {
			openMinutes := window.OpenHour*60 + window.OpenMinute
			closeMinutes := window.CloseHour*60 + window.CloseMinute
			if currentMinutes >= openMinutes && currentMinutes < closeMinutes {
				nextClose = time.Date(now.Year(), now.Month(), now.Day(), window.CloseHour, window.CloseMinute, 0, 0, cal.Timezone)
				break
			}
		}
	}

	nextOpen := s.nextOpenFrom(cal, now)

	return MarketClock{IsOpen: isOpen, NextOpen: nextOpen, NextClose: nextClose}
}

// nextOpenFrom scans forward from `from`, skipping weekends and configured
// holidays, and returns the instant of the next trading-window open. If `from`
// itself is inside a still-upcoming window on a trading day, that window's
// open is returned even though the market may already be open.
func (s *MarketHoursService) nextOpenFrom(cal *ExchangeCalendar, from time.Time) time.Time {
	if len(cal.TradingWindows) == 0 {
		return time.Time{}
	}

	for dayOffset := 0; dayOffset < 14; dayOffset++ {
		day := from.AddDate(0, 0, dayOffset)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, cal.Timezone)
		if s.isHoliday(cal, dayStart) {
			continue
		}

		for _, window := range cal.TradingWindows {
			open := time.Date(day.Year(), day.Month(), day.Day(), window.OpenHour, window.OpenMinute, 0, 0, cal.Timezone)
			if open.After(from) || (dayOffset == 0 && !open.Before(from)) {
				return open
			}
			close := time.Date(day.Year(), day.Month(), day.Day(), window.CloseHour, window.CloseMinute, 0, 0, cal.Timezone)
			if dayOffset == 0 && from.Before(close) && from.After(open) {
				return open
			}
		}
	}

	return time.Time{}
}

func (s *MarketHoursService) isHoliday(cal *ExchangeCalendar, day time.Time) bool {
	for _, holiday := range cal.Holidays2026 {
		if holiday.Equal(day) {
			return true
		}
	}
	return false
}

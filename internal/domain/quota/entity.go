package quota

// DefaultDailyLimit is the free-tier scan allowance.
const DefaultDailyLimit = 5

// DateLayout is the ISO calendar-day format stored as last_scan_date.
const DateLayout = "2006-01-02"

// Counts is the quota view surfaced to the user.
type Counts struct {
	ScansToday int `json:"scans_today"`
	DailyLimit int `json:"daily_limit"`
	Remaining  int `json:"remaining"`
}

// Record is the persisted quota state.
type Record struct {
	ScansToday   int
	LastScanDate string
	DailyLimit   int
}

// CountsFor derives the user view. Remaining never goes negative.
func CountsFor(count, limit int) Counts {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Counts{ScansToday: count, DailyLimit: limit, Remaining: remaining}
}

// Default is reported when the stored quota cannot be read.
func Default() Counts {
	return CountsFor(0, DefaultDailyLimit)
}

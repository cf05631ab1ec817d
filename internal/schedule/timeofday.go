package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

const minutesPerDay = 24 * 60

// TimeOfDay is a clock time local to the clinic, stored as minutes since
// midnight. Appointment times never carry a timezone or a date component.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS". Seconds are truncated.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("parse time of day %q: want HH:MM or HH:MM:SS", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: bad hour", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: bad minute", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("parse time of day %q: out of range", s)
	}

	return TimeOfDay(hour*60 + minute), nil
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= minutesPerDay
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add returns the time advanced by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Clock formats the time for human-facing messages, e.g. "09:30 AM".
func (t TimeOfDay) Clock() string {
	hour := t.Hour()
	meridiem := "AM"
	switch {
	case hour == 0:
		hour = 12
	case hour == 12:
		meridiem = "PM"
	case hour > 12:
		hour -= 12
		meridiem = "PM"
	}
	return fmt.Sprintf("%02d:%02d %s", hour, t.Minute(), meridiem)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// PG converts to the pgtype representation of a Postgres TIME column.
func (t TimeOfDay) PG() pgtype.Time {
	return pgtype.Time{
		Microseconds: int64(t) * 60 * 1_000_000,
		Valid:        true,
	}
}

func timeOfDayFromPG(v pgtype.Time) TimeOfDay {
	return TimeOfDay(v.Microseconds / (60 * 1_000_000))
}

package drivers

import "fmt"

// SyntheticSessionKey marks rows synthesized from standings data alone, when
// the roster source was unreachable and no real session is known.
const SyntheticSessionKey = -1

// DriverRow is the cached driver record, keyed by "{season}_{driverNumber}".
type DriverRow struct {
	ID                   string  `gorm:"column:id;primaryKey;size:32;not null"`
	Season               int     `gorm:"column:season;not null;index:idx_drivers_season"`
	DriverNumber         int     `gorm:"column:driver_number;not null;index:idx_drivers_number"`
	FirstName            string  `gorm:"column:first_name;not null;default:''"`
	LastName             string  `gorm:"column:last_name;not null;default:''"`
	FullName             string  `gorm:"column:full_name;not null;default:''"`
	NameAcronym          string  `gorm:"column:name_acronym;not null;default:''"`
	CountryCode          string  `gorm:"column:country_code;not null;default:''"`
	TeamName             string  `gorm:"column:team_name;not null"`
	TeamColour           string  `gorm:"column:team_colour;not null;default:''"`
	HeadshotURL          *string `gorm:"column:headshot_url"`
	BroadcastName        string  `gorm:"column:broadcast_name;not null;default:''"`
	SessionKey           int     `gorm:"column:session_key;not null;index:idx_drivers_session"`
	ChampionshipPosition int     `gorm:"column:championship_position;not null;default:0"`
	ChampionshipPoints   float64 `gorm:"column:championship_points;not null;default:0"`
	Wins                 int     `gorm:"column:wins;not null;default:0"`
	LastUpdatedMillis    int64   `gorm:"column:last_updated_ms;not null"`
}

func (DriverRow) TableName() string {
	return "drivers"
}

// DriverID builds the composite driver key.
func DriverID(season, driverNumber int) string {
	return fmt.Sprintf("%d_%d", season, driverNumber)
}

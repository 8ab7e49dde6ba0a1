package races

import "fmt"

// RaceRow is the cached race record. The primary key is the composite
// "{season}_{round}" string so a season's schedule upserts in place.
type RaceRow struct {
	ID                string          `gorm:"column:id;primaryKey;size:32;not null"`
	Season            int             `gorm:"column:season;not null;index:idx_races_season_round,priority:1"`
	Round             int             `gorm:"column:round;not null;index:idx_races_season_round,priority:2"`
	Name              string          `gorm:"column:name;not null"`
	Date              string          `gorm:"column:date;not null"`
	Time              string          `gorm:"column:time;not null;default:''"`
	CircuitID         string          `gorm:"column:circuit_id;not null;default:''"`
	CircuitName       string          `gorm:"column:circuit_name;not null;default:''"`
	CircuitURL        string          `gorm:"column:circuit_url;not null;default:''"`
	Locality          string          `gorm:"column:locality;not null;default:''"`
	Country           string          `gorm:"column:country;not null;default:''"`
	Latitude          string          `gorm:"column:latitude;not null;default:''"`
	Longitude         string          `gorm:"column:longitude;not null;default:''"`
	URL               string          `gorm:"column:url;not null;default:''"`
	LastUpdatedMillis int64           `gorm:"column:last_updated_ms;not null"`
	Results           []RaceResultRow `gorm:"foreignKey:RaceID;references:ID;constraint:OnDelete:CASCADE"`
}

func (RaceRow) TableName() string {
	return "races"
}

// RaceID builds the composite race key.
func RaceID(season, round int) string {
	return fmt.Sprintf("%d_%d", season, round)
}

// RaceResultRow is one cached finishing-classification record. Driver and
// constructor attributes are denormalized per row rather than joined.
type RaceResultRow struct {
	ID                     string  `gorm:"column:id;primaryKey;size:96;not null"`
	RaceID                 string  `gorm:"column:race_id;size:32;not null;index:idx_race_results_race"`
	Position               int     `gorm:"column:position;not null;default:0"`
	PositionText           string  `gorm:"column:position_text;not null;default:''"`
	Points                 float64 `gorm:"column:points;not null;default:0"`
	DriverID               string  `gorm:"column:driver_id;not null"`
	DriverPermanentNumber  string  `gorm:"column:driver_permanent_number;not null;default:''"`
	DriverCode             string  `gorm:"column:driver_code;not null;default:''"`
	DriverGivenName        string  `gorm:"column:driver_given_name;not null;default:''"`
	DriverFamilyName       string  `gorm:"column:driver_family_name;not null;default:''"`
	DriverNationality      string  `gorm:"column:driver_nationality;not null;default:''"`
	DriverURL              string  `gorm:"column:driver_url;not null;default:''"`
	ConstructorID          string  `gorm:"column:constructor_id;not null;default:''"`
	ConstructorName        string  `gorm:"column:constructor_name;not null;default:''"`
	ConstructorNationality string  `gorm:"column:constructor_nationality;not null;default:''"`
	ConstructorURL         string  `gorm:"column:constructor_url;not null;default:''"`
	Grid                   int     `gorm:"column:grid;not null;default:0"`
	Laps                   int     `gorm:"column:laps;not null;default:0"`
	Status                 string  `gorm:"column:status;not null;default:''"`
	FastestLapRank         *int    `gorm:"column:fastest_lap_rank"`
	FastestLapLap          *int    `gorm:"column:fastest_lap_lap"`
	FastestLapTime         *string `gorm:"column:fastest_lap_time"`
	FastestLapSpeedUnits   *string `gorm:"column:fastest_lap_speed_units"`
	FastestLapSpeed        *string `gorm:"column:fastest_lap_speed"`
	LastUpdatedMillis      int64   `gorm:"column:last_updated_ms;not null"`
}

func (RaceResultRow) TableName() string {
	return "race_results"
}

// RaceResultID builds the composite result key.
func RaceResultID(raceID, driverID string) string {
	return fmt.Sprintf("%s_%s", raceID, driverID)
}

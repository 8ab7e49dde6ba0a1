package races

import (
	"strconv"
	"time"

	"github.com/parrishdev/pitwall/internal/jolpica"
)

// Wire records arrive with every numeric field as a string and with circuit,
// time and fastest-lap details optional. Mapping defaults missing fields
// instead of failing; shape problems never abort a refresh.

func raceRowFromWire(wire jolpica.Race, now time.Time) RaceRow {
	season := atoiOrZero(wire.Season)
	round := atoiOrZero(wire.Round)

	row := RaceRow{
		ID:                RaceID(season, round),
		Season:            season,
		Round:             round,
		Name:              wire.RaceName,
		Date:              wire.Date,
		Time:              wire.Time,
		URL:               wire.URL,
		CircuitName:       "Unknown Circuit",
		LastUpdatedMillis: now.UnixMilli(),
	}
	if wire.Circuit != nil {
		row.CircuitID = wire.Circuit.CircuitID
		row.CircuitName = wire.Circuit.CircuitName
		row.CircuitURL = wire.Circuit.URL
		if wire.Circuit.Location != nil {
			row.Locality = wire.Circuit.Location.Locality
			row.Country = wire.Circuit.Location.Country
			row.Latitude = wire.Circuit.Location.Lat
			row.Longitude = wire.Circuit.Location.Long
		}
	}
	return row
}

func resultRowFromWire(wire jolpica.Result, raceID string, now time.Time) RaceResultRow {
	row := RaceResultRow{
		ID:                     RaceResultID(raceID, wire.Driver.DriverID),
		RaceID:                 raceID,
		Position:               atoiOrZero(wire.Position),
		PositionText:           wire.PositionText,
		Points:                 parseFloatOrZero(wire.Points),
		DriverID:               wire.Driver.DriverID,
		DriverPermanentNumber:  wire.Driver.PermanentNumber,
		DriverCode:             wire.Driver.Code,
		DriverGivenName:        wire.Driver.GivenName,
		DriverFamilyName:       wire.Driver.FamilyName,
		DriverNationality:      wire.Driver.Nationality,
		DriverURL:              wire.Driver.URL,
		ConstructorID:          wire.Constructor.ConstructorID,
		ConstructorName:        wire.Constructor.Name,
		ConstructorNationality: wire.Constructor.Nationality,
		ConstructorURL:         wire.Constructor.URL,
		Grid:                   atoiOrZero(wire.Grid),
		Laps:                   atoiOrZero(wire.Laps),
		Status:                 wire.Status,
		LastUpdatedMillis:      now.UnixMilli(),
	}
	if lap := wire.FastestLap; lap != nil {
		if rank, err := strconv.Atoi(lap.Rank); err == nil {
			row.FastestLapRank = &rank
		}
		if lapNumber, err := strconv.Atoi(lap.Lap); err == nil {
			row.FastestLapLap = &lapNumber
		}
		if lap.Time != nil {
			lapTime := lap.Time.Time
			row.FastestLapTime = &lapTime
		}
		if lap.AverageSpeed != nil {
			units := lap.AverageSpeed.Units
			speed := lap.AverageSpeed.Speed
			row.FastestLapSpeedUnits = &units
			row.FastestLapSpeed = &speed
		}
	}
	return row
}

func (r RaceRow) toDomain() Race {
	return Race{
		ID:     r.ID,
		Season: r.Season,
		Round:  r.Round,
		Name:   r.Name,
		Date:   r.Date,
		Time:   r.Time,
		Circuit: Circuit{
			ID:   r.CircuitID,
			Name: r.CircuitName,
			Location: Location{
				Locality:  r.Locality,
				Country:   r.Country,
				Latitude:  r.Latitude,
				Longitude: r.Longitude,
			},
			URL: r.CircuitURL,
		},
		URL: r.URL,
	}
}

func (r RaceResultRow) toDomain() RaceResult {
	result := RaceResult{
		Position:     r.Position,
		PositionText: r.PositionText,
		Points:       r.Points,
		Driver: ResultDriver{
			ID:              r.DriverID,
			PermanentNumber: r.DriverPermanentNumber,
			Code:            r.DriverCode,
			GivenName:       r.DriverGivenName,
			FamilyName:      r.DriverFamilyName,
			Nationality:     r.DriverNationality,
			URL:             r.DriverURL,
		},
		Constructor: Constructor{
			ID:          r.ConstructorID,
			Name:        r.ConstructorName,
			Nationality: r.ConstructorNationality,
			URL:         r.ConstructorURL,
		},
		Grid:   r.Grid,
		Laps:   r.Laps,
		Status: r.Status,
	}
	if r.FastestLapRank != nil && r.FastestLapLap != nil && r.FastestLapTime != nil {
		lap := &FastestLap{
			Rank: *r.FastestLapRank,
			Lap:  *r.FastestLapLap,
			Time: *r.FastestLapTime,
		}
		if r.FastestLapSpeedUnits != nil && r.FastestLapSpeed != nil {
			lap.AverageSpeed = &AverageSpeed{
				Units: *r.FastestLapSpeedUnits,
				Speed: *r.FastestLapSpeed,
			}
		}
		result.FastestLap = lap
	}
	return result
}

func atoiOrZero(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}

func parseFloatOrZero(value string) float64 {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

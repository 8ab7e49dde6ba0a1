package drivers

import (
	"strconv"
	"strings"
	"time"

	"github.com/parrishdev/pitwall/internal/jolpica"
	"github.com/parrishdev/pitwall/internal/openf1"
)

// driverRowFromWire converts a roster entry to a cache row. Returns nil when
// the entry is missing a driver number, session key or team name; such rows
// are dropped, not errors.
func driverRowFromWire(wire openf1.Driver, season int, now time.Time) *DriverRow {
	if wire.DriverNumber == nil || wire.SessionKey == nil || wire.TeamName == nil {
		return nil
	}
	return &DriverRow{
		ID:                DriverID(season, *wire.DriverNumber),
		Season:            season,
		DriverNumber:      *wire.DriverNumber,
		FirstName:         stringOrEmpty(wire.FirstName),
		LastName:          stringOrEmpty(wire.LastName),
		FullName:          stringOrEmpty(wire.FullName),
		NameAcronym:       strings.ToUpper(stringOrEmpty(wire.NameAcronym)),
		CountryCode:       stringOrEmpty(wire.CountryCode),
		TeamName:          *wire.TeamName,
		TeamColour:        stringOrEmpty(wire.TeamColour),
		HeadshotURL:       wire.HeadshotURL,
		BroadcastName:     stringOrEmpty(wire.BroadcastName),
		SessionKey:        *wire.SessionKey,
		LastUpdatedMillis: now.UnixMilli(),
	}
}

// driverRowFromStanding synthesizes a cache row from standings data alone.
// Used on the degraded path when the roster source is unreachable: no
// headshot, no team colour, session key set to the synthetic sentinel.
// Returns nil when the standing carries no parsable permanent number.
func driverRowFromStanding(standing jolpica.DriverStanding, season int, now time.Time) *DriverRow {
	number, err := strconv.Atoi(standing.Driver.PermanentNumber)
	if err != nil {
		return nil
	}
	teamName := ""
	if len(standing.Constructors) > 0 {
		teamName = standing.Constructors[0].Name
	}
	row := &DriverRow{
		ID:                DriverID(season, number),
		Season:            season,
		DriverNumber:      number,
		FirstName:         standing.Driver.GivenName,
		LastName:          standing.Driver.FamilyName,
		FullName:          strings.TrimSpace(standing.Driver.GivenName + " " + standing.Driver.FamilyName),
		NameAcronym:       strings.ToUpper(standing.Driver.Code),
		CountryCode:       standing.Driver.Nationality,
		TeamName:          teamName,
		SessionKey:        SyntheticSessionKey,
		LastUpdatedMillis: now.UnixMilli(),
	}
	applyStanding(row, standing)
	return row
}

// applyStanding overlays championship position, points and wins onto a row.
// Numeric parse failures default to zero.
func applyStanding(row *DriverRow, standing jolpica.DriverStanding) {
	row.ChampionshipPosition = atoiOrZero(standing.Position)
	row.ChampionshipPoints = parseFloatOrZero(standing.Points)
	row.Wins = atoiOrZero(standing.Wins)
}

func (r DriverRow) toDomain() Driver {
	return Driver{
		Season:               r.Season,
		DriverNumber:         r.DriverNumber,
		FirstName:            r.FirstName,
		LastName:             r.LastName,
		FullName:             r.FullName,
		NameAcronym:          r.NameAcronym,
		CountryCode:          r.CountryCode,
		TeamName:             r.TeamName,
		TeamColour:           r.TeamColour,
		HeadshotURL:          r.HeadshotURL,
		BroadcastName:        r.BroadcastName,
		SessionKey:           r.SessionKey,
		ChampionshipPosition: r.ChampionshipPosition,
		ChampionshipPoints:   r.ChampionshipPoints,
		Wins:                 r.Wins,
	}
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
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

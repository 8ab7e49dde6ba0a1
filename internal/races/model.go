package races

// Domain models served to presentation logic. These are read-only snapshots
// derived from cache rows; they never reach the wire.

type Race struct {
	ID      string
	Season  int
	Round   int
	Name    string
	Date    string
	Time    string
	Circuit Circuit
	URL     string
}

type Circuit struct {
	ID       string
	Name     string
	Location Location
	URL      string
}

type Location struct {
	Locality  string
	Country   string
	Latitude  string
	Longitude string
}

type RaceResult struct {
	Position     int
	PositionText string
	Points       float64
	Driver       ResultDriver
	Constructor  Constructor
	Grid         int
	Laps         int
	Status       string
	FastestLap   *FastestLap
}

type ResultDriver struct {
	ID              string
	PermanentNumber string
	Code            string
	GivenName       string
	FamilyName      string
	Nationality     string
	URL             string
}

type Constructor struct {
	ID          string
	Name        string
	Nationality string
	URL         string
}

type FastestLap struct {
	Rank         int
	Lap          int
	Time         string
	AverageSpeed *AverageSpeed
}

type AverageSpeed struct {
	Units string
	Speed string
}

// RaceWithResults joins a race and its cached result rows.
type RaceWithResults struct {
	Race    Race
	Results []RaceResult
}

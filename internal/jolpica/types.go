package jolpica

// Wire types for the Jolpica F1 API (Ergast-compatible response format).
// Every numeric field arrives as a string; callers parse with zero defaults.

type Race struct {
	Season   string   `json:"season"`
	Round    string   `json:"round"`
	URL      string   `json:"url"`
	RaceName string   `json:"raceName"`
	Circuit  *Circuit `json:"Circuit"`
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	Results  []Result `json:"Results"`
}

type Circuit struct {
	CircuitID   string    `json:"circuitId"`
	URL         string    `json:"url"`
	CircuitName string    `json:"circuitName"`
	Location    *Location `json:"Location"`
}

type Location struct {
	Lat      string `json:"lat"`
	Long     string `json:"long"`
	Locality string `json:"locality"`
	Country  string `json:"country"`
}

type Result struct {
	Number       string      `json:"number"`
	Position     string      `json:"position"`
	PositionText string      `json:"positionText"`
	Points       string      `json:"points"`
	Driver       Driver      `json:"Driver"`
	Constructor  Constructor `json:"Constructor"`
	Grid         string      `json:"grid"`
	Laps         string      `json:"laps"`
	Status       string      `json:"status"`
	FastestLap   *FastestLap `json:"FastestLap"`
}

type Driver struct {
	DriverID        string `json:"driverId"`
	PermanentNumber string `json:"permanentNumber"`
	Code            string `json:"code"`
	URL             string `json:"url"`
	GivenName       string `json:"givenName"`
	FamilyName      string `json:"familyName"`
	DateOfBirth     string `json:"dateOfBirth"`
	Nationality     string `json:"nationality"`
}

type Constructor struct {
	ConstructorID string `json:"constructorId"`
	URL           string `json:"url"`
	Name          string `json:"name"`
	Nationality   string `json:"nationality"`
}

type FastestLap struct {
	Rank         string        `json:"rank"`
	Lap          string        `json:"lap"`
	Time         *LapTime      `json:"Time"`
	AverageSpeed *AverageSpeed `json:"AverageSpeed"`
}

type LapTime struct {
	Time string `json:"time"`
}

type AverageSpeed struct {
	Units string `json:"units"`
	Speed string `json:"speed"`
}

type DriverStanding struct {
	Position     string        `json:"position"`
	PositionText string        `json:"positionText"`
	Points       string        `json:"points"`
	Wins         string        `json:"wins"`
	Driver       Driver        `json:"Driver"`
	Constructors []Constructor `json:"Constructors"`
}

// Response envelopes. The API nests everything under an "MRData" root.

type raceTableResponse struct {
	MRData struct {
		RaceTable struct {
			Season string `json:"season"`
			Races  []Race `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}

type standingsResponse struct {
	MRData struct {
		StandingsTable struct {
			Season         string `json:"season"`
			StandingsLists []struct {
				Season          string           `json:"season"`
				Round           string           `json:"round"`
				DriverStandings []DriverStanding `json:"DriverStandings"`
			} `json:"StandingsLists"`
		} `json:"StandingsTable"`
	} `json:"MRData"`
}

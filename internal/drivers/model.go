package drivers

// Driver is the championship roster entry served to presentation logic.
// Championship fields are overlays: a driver can exist without standings
// data, in which case position, points and wins stay at zero.
type Driver struct {
	Season               int
	DriverNumber         int
	FirstName            string
	LastName             string
	FullName             string
	NameAcronym          string
	CountryCode          string
	TeamName             string
	TeamColour           string
	HeadshotURL          *string
	BroadcastName        string
	SessionKey           int
	ChampionshipPosition int
	ChampionshipPoints   float64
	Wins                 int
}

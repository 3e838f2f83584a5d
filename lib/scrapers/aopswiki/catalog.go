package aopswiki

// Competition is a node in the year → competition → problem catalog.
type Competition struct {
	Year int
	Code string
	Name string
}

// ProblemRef points at one problem of a competition before its page has
// been fetched.
type ProblemRef struct {
	Competition Competition
	Number      int
}

// CompetitionInfo describes a contest series and the years it ran. The
// wiki does not publish a machine-readable catalog, so this table doubles
// as the fallback when a year index page is missing or unparseable.
type CompetitionInfo struct {
	Code        string
	Name        string
	Description string
	FirstYear   int
	// LastYear is zero for series still held today.
	LastYear int
}

var knownCompetitions = []CompetitionInfo{
	{
		Code:        "AJHSME",
		Name:        "AJHSME",
		Description: "American Junior High School Mathematics Examination",
		FirstYear:   1985,
		LastYear:    1998,
	},
	{
		Code:        "AHSME",
		Name:        "AHSME",
		Description: "American High School Mathematics Examination",
		FirstYear:   1950,
		LastYear:    1998,
	},
	{
		Code:        "AMC_8",
		Name:        "AMC 8",
		Description: "American Mathematics Competition 8",
		FirstYear:   1999,
	},
	{
		Code:        "AMC_10",
		Name:        "AMC 10",
		Description: "American Mathematics Competition 10 (single version)",
		FirstYear:   2000,
		LastYear:    2001,
	},
	{
		Code:        "AMC_10A",
		Name:        "AMC 10A",
		Description: "American Mathematics Competition 10, version A",
		FirstYear:   2002,
	},
	{
		Code:        "AMC_10B",
		Name:        "AMC 10B",
		Description: "American Mathematics Competition 10, version B",
		FirstYear:   2002,
	},
	{
		Code:        "AMC_12",
		Name:        "AMC 12",
		Description: "American Mathematics Competition 12 (single version)",
		FirstYear:   2000,
		LastYear:    2001,
	},
	{
		Code:        "AMC_12A",
		Name:        "AMC 12A",
		Description: "American Mathematics Competition 12, version A",
		FirstYear:   2002,
	},
	{
		Code:        "AMC_12B",
		Name:        "AMC 12B",
		Description: "American Mathematics Competition 12, version B",
		FirstYear:   2002,
	},
	{
		Code:        "AIME",
		Name:        "AIME",
		Description: "American Invitational Mathematics Examination",
		FirstYear:   1983,
		LastYear:    1999,
	},
	{
		Code:        "AIME_I",
		Name:        "AIME I",
		Description: "American Invitational Mathematics Examination I",
		FirstYear:   2000,
	},
	{
		Code:        "AIME_II",
		Name:        "AIME II",
		Description: "American Invitational Mathematics Examination II",
		FirstYear:   2000,
	},
}

func (info CompetitionInfo) HeldIn(year int) bool {
	if year < info.FirstYear {
		return false
	}
	return info.LastYear == 0 || year <= info.LastYear
}

// KnownCompetitions lists the contest series held in a given year
// according to the built-in catalog.
func KnownCompetitions(year int) []CompetitionInfo {
	var held []CompetitionInfo
	for _, info := range knownCompetitions {
		if info.HeldIn(year) {
			held = append(held, info)
		}
	}
	return held
}

func catalogCompetitions(year int) []Competition {
	infos := KnownCompetitions(year)
	comps := make([]Competition, len(infos))
	for i, info := range infos {
		comps[i] = Competition{Year: year, Code: info.Code, Name: info.Name}
	}
	return comps
}

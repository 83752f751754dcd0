package gdelt

// Categories maps each democracy-related category to its CAMEO event
// codes. An event is kept by the fetcher only when its EventCode appears
// in one of these lists.
var Categories = map[string][]string{
	"Political Repression & Restrictions": {
		"172", "1721", "1722", "1723", "1724", "173", "174", "175",
	},
	"Protest & Dissent Events": {
		"140", "141", "1411", "1412", "1413", "1414", "143", "145",
		"1451", "1452", "1453", "1454",
	},
	"Threats to Democratic Order": {
		"132", "1321", "1322", "1324", "137",
	},
	"Demands for Democratic Reform": {
		"104", "1041", "1042", "1043", "1044",
	},
	"Rejection of Democratic Processes": {
		"123", "1231", "1232", "1233", "1234", "128",
	},
	"Violence Against Civilians": {
		"180", "181", "182", "1822", "1823", "185", "186",
	},
	"Mass Violence & Persecution": {
		"201", "202", "203",
	},
	"Judicial & Legal Actions": {
		"092", "112", "1122", "115", "116",
	},
	"Electoral & Political Cooperation/Conflict": {
		"0241", "0244", "0831", "0832", "0833", "0834", "161",
	},
	"Media & Information Control Related": {
		"011", "111", "113",
	},
}

var codeToCategory = buildCodeIndex()

func buildCodeIndex() map[string]string {
	idx := make(map[string]string)
	for category, codes := range Categories {
		for _, code := range codes {
			idx[code] = category
		}
	}
	return idx
}

// CategoryFor returns the category bucket for a CAMEO event code, and
// whether the code is on the allowlist.
func CategoryFor(eventCode string) (string, bool) {
	category, ok := codeToCategory[eventCode]
	return category, ok
}

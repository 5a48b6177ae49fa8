package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	BaseURL      string // base URL of the fitness service
	CaptureFile  string // path to the saved browser request ("copy as cURL" text)
	Cookie       string // overrides the Cookie header from the capture file
	CSRFToken    string // overrides the X-CSRF-Token header from the capture file
	UserAgent    string // overrides the User-Agent header from the capture file
	HTTPTimeout  string // timeout for a single request against the service
	LogLevel     string // sets the log level (zap log level values)
	LogFormat    string // text vs json
	LogFilter    string // zapfilter rules applied on top of the log level
	SheetID      string // Google sheet holding the segment catalog and the roster
	CatalogGID   string // sheet tab (gid) with the segment definitions (Løpsinfo)
	RosterGID    string // sheet tab (gid) with the athlete roster (Utøvere)
	SegmentsFile string // local YAML segment catalog; takes precedence over the sheet
	FromYear     int    // first year of the fetch window
	ToYear       int    // last year of the fetch window (0 means current year)
	OutFile      string // path of the exported results file
	OutFormat    string // csv vs tsv
	Name         string // athlete name filter; skips the interactive prompt
	NameCache    string // path of the cached athlete name
)

package config

const (
	// DriverSQLite selects the embedded SQLite document store.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the PostgreSQL document store.
	DriverPostgres = "postgres"
)

const (
	defaultDataDir                 = "~/.local/share/pricewatch"
	defaultLogDir                  = "~/.local/share/pricewatch/logs"
	defaultSQLiteFile              = "tracking.db"
	defaultPostgresMaxConns        = 4
	defaultSourceRequestTimeout    = 60
	defaultUserAgent               = "pricewatch/0.1"
	defaultNotifyRequestTimeout    = 10
	defaultNotifyDedupWindow       = 86400
	defaultCurrencySymbol          = "£"
	defaultProductURLTemplate      = "https://www.amazon.co.uk/gp/product/%s/"
	defaultMaxMessageLength        = 280
	defaultItemIntervalSeconds     = 5
	defaultScheduleIntervalMinutes = 60
	defaultDropThresholdPercent    = 10
	defaultAPIBind                 = "127.0.0.1:7390"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Store: Store{
			Driver:           DriverSQLite,
			PostgresMaxConns: defaultPostgresMaxConns,
		},
		Sources: Sources{
			RequestTimeout: defaultSourceRequestTimeout,
			UserAgent:      defaultUserAgent,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			DedupWindowSeconds: defaultNotifyDedupWindow,
			CurrencySymbol:     defaultCurrencySymbol,
			ProductURLTemplate: defaultProductURLTemplate,
			MaxLength:          defaultMaxMessageLength,
		},
		Sweep: Sweep{
			ItemIntervalSeconds:     defaultItemIntervalSeconds,
			ScheduleIntervalMinutes: defaultScheduleIntervalMinutes,
			DropThresholdPercent:    defaultDropThresholdPercent,
			RepairBeforeSweep:       true,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

type MeterCollectorConfig struct {
	InterpreterAPIHost string `toml:"interpreter_api_host"`
	TLSEnabled         bool   `toml:"tls_enabled"`
	// Cron expression for hourly aggregation and cleanup
	AggregationSchedule string `toml:"aggregation_schedule"`
	RetentionDays       int    `toml:"retention_days"`
	// Empty uses the default path in the data dir
	DatabasePath string `toml:"database_path"`
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"`
}

type InterpreterAPIConfig struct {
	SerialDevice  string `toml:"serial_device"`
	Baudrate      uint   `toml:"baudrate"`
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`

	// Telegram handling
	BufferSize         int    `toml:"buffer_size"`
	TelegramIntervalMs int    `toml:"telegram_interval_ms"`
	LongTermCapacity   int    `toml:"long_term_capacity"`
	TimeZone           string `toml:"time_zone"`

	// linear_regression or weighted_average
	PredictorMethod     string `toml:"predictor_method"`
	PredictorIntervalMs int    `toml:"predictor_interval_ms"`

	GuardTimeoutMs int     `toml:"guard_timeout_ms"`
	RateLimit      float64 `toml:"rate_limit"`
	RateBurst      int     `toml:"rate_burst"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Leave empty when there is no inverter
	SolarInverterIp         string `toml:"solar_inverter_ip"`
	SolarInverterModbusPort int    `toml:"solar_inverter_modbus_port"`
	// Should be named `preconfigured`
	// Check with `nmcli device status`
	WlanConnectionId string `toml:"wlan_connection_id"`
}

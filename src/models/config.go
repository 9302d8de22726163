package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	LogFormat string           `yaml:"log_format"`
	GrpcHost  string           `yaml:"grpc_host"`
	GrpcPort  int              `yaml:"grpc_port"`
	Broker    MBrokerConfig    `yaml:"broker"`
	Relay     MRelayConfig     `yaml:"relay"`
	Reference MReferenceConfig `yaml:"reference"`
	Storage   MStorageConfig   `yaml:"storage"`
	Network   MNetworkConfig   `yaml:"network"`
}

// MBrokerConfig holds the SmartAPI credentials and endpoints.
// Secrets are normally supplied through the environment, not the YAML file.
type MBrokerConfig struct {
	APIKey         string `yaml:"api_key"`
	ClientCode     string `yaml:"client_code"`
	PIN            string `yaml:"pin"`
	TOTPSecret     string `yaml:"totp_secret"`
	RestURL        string `yaml:"rest_url"`
	StreamURL      string `yaml:"stream_url"`
	ClientLocalIP  string `yaml:"client_local_ip"`
	ClientPublicIP string `yaml:"client_public_ip"`
	MACAddress     string `yaml:"mac_address"`
}

type MRelayConfig struct {
	MaxRetryAttempts         int    `yaml:"max_retry_attempts"`
	ConnectTimeoutSeconds    int    `yaml:"connect_timeout_seconds"`
	HeartbeatIntervalSeconds int    `yaml:"heartbeat_interval_seconds"`
	ClientBufferSize         int    `yaml:"client_buffer_size"`
	CorrelationID            string `yaml:"correlation_id"`
	Mode                     int    `yaml:"mode"`
	HistoricalDays           int    `yaml:"historical_days"`
}

type MReferenceConfig struct {
	IndexListURL        string `yaml:"index_list_url"`
	InstrumentMasterURL string `yaml:"instrument_master_url"`
	UniverseListURL     string `yaml:"universe_list_url"`
	FundamentalsURL     string `yaml:"fundamentals_url"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Proxies            []string `yaml:"proxies"`
	RequestTimeout     int      `yaml:"timeout"`
	MaxRetries         int      `yaml:"retries"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	RequestsPerSecond  float64  `yaml:"requests_per_second"`
	UserAgent          string   `yaml:"user_agent"`
}

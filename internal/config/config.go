package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"telemetry/internal/domain"
	"telemetry/internal/templatefmt"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName         = "telemetry"
	defaultEvaluateIntervalSec = 15
	defaultHTTPListen          = ":4000"
	defaultHealthPath          = "/healthz"
	defaultReadyPath           = "/readyz"
	defaultStatusPath          = "/api/status"
	defaultPrometheusPath      = "/prometheus"
	defaultMaxBodyBytes        = 5 << 20
	defaultNATSURL             = "nats://127.0.0.1:4222"
	defaultNATSIngestSubject   = "telemetry.events"
	defaultNATSIngestStream    = "TELEMETRY_EVENTS"
	defaultNATSIngestConsumer  = "telemetry-ingest"
	defaultNATSIngestGroup     = "telemetry-workers"
	defaultNATSAckWaitSec      = 30
	defaultNATSMaxDeliver      = -1
	defaultNATSMaxAckPending   = 2048
	defaultNATSAlertsSubject   = "telemetry.alerts"
	defaultNATSAlertsStream    = "TELEMETRY_ALERTS"
	defaultNotifyTimeoutSec    = 5
	defaultTelegramAPIBase     = "https://api.telegram.org"

	// ServiceModeNATS enables JetStream ingest and alert fan-out settings.
	ServiceModeNATS = "nats"
	// ServiceModeSingle keeps single-instance mode without NATS dependencies.
	ServiceModeSingle = "single"
)

// Config holds service runtime settings and seed alert rules.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service   ServiceConfig   `toml:"service"`
	Log       LogConfig       `toml:"log"`
	HTTP      HTTPConfig      `toml:"http"`
	Retention RetentionConfig `toml:"retention"`
	NATS      NATSConfig      `toml:"nats"`
	Notify    NotifyConfig    `toml:"notify"`
	Rule      []RuleConfig    `toml:"rule"`
}

// rawConfig mirrors TOML model before runtime normalization.
// Params: decoded sections from one TOML source.
// Returns: raw rule map keyed by rule id.
type rawConfig struct {
	Service   ServiceConfig            `toml:"service"`
	Log       LogConfig                `toml:"log"`
	HTTP      HTTPConfig               `toml:"http"`
	Retention RetentionConfig          `toml:"retention"`
	NATS      NATSConfig               `toml:"nats"`
	Notify    NotifyConfig             `toml:"notify"`
	Rule      map[string]rawRuleConfig `toml:"rule"`
}

// rawRuleConfig stores one rule body from `[rule.<id>]` table.
type rawRuleConfig struct {
	Name          string   `toml:"name"`
	Service       string   `toml:"service"`
	Metric        string   `toml:"metric"`
	WindowMinutes float64  `toml:"window_minutes"`
	Threshold     *float64 `toml:"threshold"`
	Severity      string   `toml:"severity"`
}

// ServiceConfig contains process-level settings.
// Params: name, runtime mode, and periodic evaluation interval.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name                string `toml:"name"`
	Mode                string `toml:"mode"`
	EvaluateIntervalSec int    `toml:"evaluate_interval_sec"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// HTTPConfig configures the HTTP API listener.
// Params: listen address, probe/status paths, body limit, ingest rate limit, and mock toggle.
// Returns: HTTP surface behavior.
type HTTPConfig struct {
	Listen            string  `toml:"listen"`
	HealthPath        string  `toml:"health_path"`
	ReadyPath         string  `toml:"ready_path"`
	StatusPath        string  `toml:"status_path"`
	PrometheusPath    string  `toml:"prometheus_path"`
	MaxBodyBytes      int64   `toml:"max_body_bytes"`
	IngestRatePerSec  float64 `toml:"ingest_rate_per_sec"`
	IngestBurst       int     `toml:"ingest_burst"`
	MockEnabled       *bool   `toml:"mock_enabled"`
	ReadHeaderTimeout int     `toml:"read_header_timeout_sec"`
}

// MockGeneratorEnabled reports whether /mock/generate is routed (default true).
func (c HTTPConfig) MockGeneratorEnabled() bool {
	return c.MockEnabled == nil || *c.MockEnabled
}

// RetentionConfig bounds in-memory telemetry; zero values disable each limit.
type RetentionConfig struct {
	MaxMetrics int `toml:"max_metrics"`
	MaxLogs    int `toml:"max_logs"`
	MaxAgeSec  int `toml:"max_age_sec"`
}

// MaxAge returns age limit as duration.
func (c RetentionConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeSec) * time.Second
}

// NATSConfig configures the shared NATS connection and its JetStream consumers/producers.
// Params: server URLs plus ingest and alert fan-out sections.
// Returns: NATS integration settings.
type NATSConfig struct {
	URL    []string         `toml:"url"`
	Ingest NATSIngestConfig `toml:"ingest"`
	Alerts NATSAlertsConfig `toml:"alerts"`
}

// NATSIngestConfig configures JetStream queue-consumer ingestion.
// Params: subject/stream routing, durable consumer, and ack/redelivery policy.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool   `toml:"enabled"`
	Subject       string `toml:"subject"`
	Stream        string `toml:"stream"`
	ConsumerName  string `toml:"consumer"`
	DeliverGroup  string `toml:"deliver_group"`
	AckWaitSec    int    `toml:"ack_wait_sec"`
	MaxDeliver    int    `toml:"max_deliver"`
	MaxAckPending int    `toml:"max_ack_pending"`
}

// NATSAlertsConfig configures JetStream publication of alert transitions.
type NATSAlertsConfig struct {
	Enabled bool   `toml:"enabled"`
	Subject string `toml:"subject"`
	Stream  string `toml:"stream"`
}

// NotifyConfig configures outbound alert transition channels; the log channel is always on.
// Params: webhook and Telegram channel sections.
// Returns: notification runtime options.
type NotifyConfig struct {
	Webhook  WebhookNotifier  `toml:"webhook"`
	Telegram TelegramNotifier `toml:"telegram"`
}

// NotifyRetry defines retry policy for one notification channel.
// Params: enable flag, backoff mode, initial/max delay, attempts limit (default 3), and attempt logging.
// Returns: retry behavior for channel sends.
type NotifyRetry struct {
	Enabled        bool   `toml:"enabled"`
	Backoff        string `toml:"backoff"`
	InitialMS      int    `toml:"initial_ms"`
	MaxMS          int    `toml:"max_ms"`
	MaxAttempts    int    `toml:"max_attempts"`
	LogEachAttempt bool   `toml:"log_each_attempt"`
}

// WebhookNotifier posts notification JSON to an HTTP endpoint.
// Params: URL, method, timeout, optional static headers, and retry policy.
// Returns: webhook channel configuration.
type WebhookNotifier struct {
	Enabled    bool              `toml:"enabled"`
	URL        string            `toml:"url"`
	Method     string            `toml:"method"`
	TimeoutSec int               `toml:"timeout_sec"`
	Headers    map[string]string `toml:"headers"`
	Retry      NotifyRetry       `toml:"retry"`
}

// TelegramNotifier sends rendered notification text to one Telegram chat.
// Params: bot token, chat id, API base URL, message template, and retry policy.
// Returns: Telegram channel configuration.
type TelegramNotifier struct {
	Enabled  bool        `toml:"enabled"`
	BotToken string      `toml:"bot_token"`
	ChatID   string      `toml:"chat_id"`
	APIBase  string      `toml:"api_base"`
	Template string      `toml:"template"`
	Retry    NotifyRetry `toml:"retry"`
}

// RuleConfig describes one seed alert rule.
// Params: id from `[rule.<id>]` key plus rule fields.
// Returns: rule definition appended after the built-in rule.
type RuleConfig struct {
	ID            string
	Name          string
	Service       string
	Metric        string
	WindowMinutes float64
	Threshold     float64
	Severity      string
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns configuration with defaults applied and no seed rules.
// Params: none.
// Returns: config used when the service starts without a config source.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// SeedRules converts configured rules into registry entries.
// Params: none.
// Returns: rules in config order (service "" means all services).
func (c Config) SeedRules() []domain.Rule {
	rules := make([]domain.Rule, 0, len(c.Rule))
	for _, rule := range c.Rule {
		out := domain.Rule{
			ID:            rule.ID,
			Name:          rule.Name,
			Metric:        rule.Metric,
			WindowMinutes: rule.WindowMinutes,
			Threshold:     rule.Threshold,
			Severity:      rule.Severity,
		}
		if rule.Service != "" {
			service := rule.Service
			out.Service = &service
		}
		rules = append(rules, out)
	}
	return rules
}

// normalizeRawConfig converts raw TOML model to runtime config.
// Params: decoded raw config from file fragment.
// Returns: normalized config snapshot with rules sorted by id.
func normalizeRawConfig(raw rawConfig) (Config, error) {
	cfg := Config{
		Service:   raw.Service,
		Log:       raw.Log,
		HTTP:      raw.HTTP,
		Retention: raw.Retention,
		NATS:      raw.NATS,
		Notify:    raw.Notify,
	}
	if len(raw.Rule) == 0 {
		return cfg, nil
	}

	ids := make([]string, 0, len(raw.Rule))
	for id := range raw.Rule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	cfg.Rule = make([]RuleConfig, 0, len(ids))
	for _, id := range ids {
		body := raw.Rule[id]
		if body.Threshold == nil {
			return Config{}, fmt.Errorf("rule.%s.threshold is required", id)
		}
		cfg.Rule = append(cfg.Rule, RuleConfig{
			ID:            id,
			Name:          body.Name,
			Service:       strings.TrimSpace(body.Service),
			Metric:        body.Metric,
			WindowMinutes: body.WindowMinutes,
			Threshold:     *body.Threshold,
			Severity:      body.Severity,
		})
	}
	return cfg, nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var raw rawConfig
	if err := toml.Unmarshal(body, &raw); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	cfg, err := normalizeRawConfig(raw)
	if err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment)
	}
	return merged, nil
}

// mergeConfig overlays source onto destination section by section.
// Params: destination config and next fragment.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.HTTP != (HTTPConfig{}) {
		dst.HTTP = src.HTTP
	}
	if src.Retention != (RetentionConfig{}) {
		dst.Retention = src.Retention
	}
	if hasNATSConfig(src.NATS) {
		dst.NATS = src.NATS
	}
	if hasNotifyConfig(src.Notify.Webhook) {
		dst.Notify.Webhook = src.Notify.Webhook
	}
	if src.Notify.Telegram != (TelegramNotifier{}) {
		dst.Notify.Telegram = src.Notify.Telegram
	}
	if len(src.Rule) > 0 {
		dst.Rule = append(dst.Rule, src.Rule...)
	}
}

func hasNotifyConfig(cfg WebhookNotifier) bool {
	return cfg.Enabled || cfg.URL != "" || cfg.Method != "" || cfg.TimeoutSec != 0 ||
		len(cfg.Headers) > 0 || cfg.Retry != (NotifyRetry{})
}

func hasNATSConfig(cfg NATSConfig) bool {
	return len(cfg.URL) > 0 || cfg.Ingest != (NATSIngestConfig{}) || cfg.Alerts != (NATSAlertsConfig{})
}

// applyDefaults fills every unset field with its runtime default.
// Params: config to mutate.
// Returns: none.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	cfg.Service.Mode = NormalizeServiceMode(cfg.Service.Mode)
	if cfg.Service.EvaluateIntervalSec == 0 {
		cfg.Service.EvaluateIntervalSec = defaultEvaluateIntervalSec
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.HTTP.HealthPath) == "" {
		cfg.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.HTTP.ReadyPath) == "" {
		cfg.HTTP.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.HTTP.StatusPath) == "" {
		cfg.HTTP.StatusPath = defaultStatusPath
	}
	if strings.TrimSpace(cfg.HTTP.PrometheusPath) == "" {
		cfg.HTTP.PrometheusPath = defaultPrometheusPath
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.HTTP.IngestRatePerSec > 0 && cfg.HTTP.IngestBurst <= 0 {
		cfg.HTTP.IngestBurst = max(1, int(cfg.HTTP.IngestRatePerSec))
	}
	if cfg.HTTP.MockEnabled == nil {
		enabled := true
		cfg.HTTP.MockEnabled = &enabled
	}
	if cfg.HTTP.ReadHeaderTimeout <= 0 {
		cfg.HTTP.ReadHeaderTimeout = 5
	}

	cfg.NATS.URL = normalizeNATSURLs(cfg.NATS.URL)
	if cfg.Service.Mode == ServiceModeNATS && len(cfg.NATS.URL) == 0 {
		cfg.NATS.URL = []string{defaultNATSURL}
	}
	ingest := &cfg.NATS.Ingest
	if strings.TrimSpace(ingest.Subject) == "" {
		ingest.Subject = defaultNATSIngestSubject
	}
	if strings.TrimSpace(ingest.Stream) == "" {
		ingest.Stream = defaultNATSIngestStream
	}
	if strings.TrimSpace(ingest.ConsumerName) == "" {
		ingest.ConsumerName = defaultNATSIngestConsumer
	}
	if strings.TrimSpace(ingest.DeliverGroup) == "" {
		ingest.DeliverGroup = defaultNATSIngestGroup
	}
	if ingest.AckWaitSec == 0 {
		ingest.AckWaitSec = defaultNATSAckWaitSec
	}
	if ingest.MaxDeliver == 0 {
		ingest.MaxDeliver = defaultNATSMaxDeliver
	}
	if ingest.MaxAckPending == 0 {
		ingest.MaxAckPending = defaultNATSMaxAckPending
	}
	alerts := &cfg.NATS.Alerts
	if strings.TrimSpace(alerts.Subject) == "" {
		alerts.Subject = defaultNATSAlertsSubject
	}
	if strings.TrimSpace(alerts.Stream) == "" {
		alerts.Stream = defaultNATSAlertsStream
	}

	webhook := &cfg.Notify.Webhook
	if strings.TrimSpace(webhook.Method) == "" {
		webhook.Method = "POST"
	}
	if webhook.TimeoutSec <= 0 {
		webhook.TimeoutSec = defaultNotifyTimeoutSec
	}
	fillNotifyRetryDefaults(&webhook.Retry)
	telegram := &cfg.Notify.Telegram
	if strings.TrimSpace(telegram.APIBase) == "" {
		telegram.APIBase = defaultTelegramAPIBase
	}
	if strings.TrimSpace(telegram.Template) == "" {
		telegram.Template = templatefmt.DefaultNotificationTemplate
	}
	fillNotifyRetryDefaults(&telegram.Retry)

	for i := range cfg.Rule {
		rule := &cfg.Rule[i]
		if strings.TrimSpace(rule.Metric) == "" {
			rule.Metric = domain.DefaultRuleMetric
		}
		if rule.WindowMinutes == 0 {
			rule.WindowMinutes = domain.DefaultRuleWindowMinutes
		}
		if strings.TrimSpace(rule.Severity) == "" {
			rule.Severity = domain.DefaultRuleSeverity
		}
	}
}

// fillNotifyRetryDefaults fills retry policy defaults.
// Params: retry policy pointer.
// Returns: none.
func fillNotifyRetryDefaults(retry *NotifyRetry) {
	if strings.TrimSpace(retry.Backoff) == "" {
		retry.Backoff = "exponential"
	}
	if retry.InitialMS <= 0 {
		retry.InitialMS = 200
	}
	if retry.MaxMS <= 0 {
		retry.MaxMS = 5000
	}
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 3
	}
}

// validateConfig checks cross-section invariants after defaults are applied.
// Params: config snapshot.
// Returns: first validation error with dotted key path.
func validateConfig(cfg Config) error {
	mode := NormalizeServiceMode(cfg.Service.Mode)
	if !IsSupportedServiceMode(mode) {
		return fmt.Errorf("service.mode has unsupported value %q", cfg.Service.Mode)
	}
	if cfg.Service.EvaluateIntervalSec < 0 {
		return errors.New("service.evaluate_interval_sec must be >0")
	}

	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}

	paths := map[string]string{
		"http.health_path":     cfg.HTTP.HealthPath,
		"http.ready_path":      cfg.HTTP.ReadyPath,
		"http.status_path":     cfg.HTTP.StatusPath,
		"http.prometheus_path": cfg.HTTP.PrometheusPath,
	}
	keys := make([]string, 0, len(paths))
	for key := range paths {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !strings.HasPrefix(paths[key], "/") {
			return fmt.Errorf("%s must start with /", key)
		}
	}
	if cfg.HTTP.IngestRatePerSec < 0 {
		return errors.New("http.ingest_rate_per_sec must be >=0")
	}
	if cfg.HTTP.IngestBurst < 0 {
		return errors.New("http.ingest_burst must be >=0")
	}

	if cfg.Retention.MaxMetrics < 0 {
		return errors.New("retention.max_metrics must be >=0")
	}
	if cfg.Retention.MaxLogs < 0 {
		return errors.New("retention.max_logs must be >=0")
	}
	if cfg.Retention.MaxAgeSec < 0 {
		return errors.New("retention.max_age_sec must be >=0")
	}

	if mode == ServiceModeSingle {
		if cfg.NATS.Ingest.Enabled {
			return errors.New("nats.ingest.enabled must be false when service.mode=single")
		}
		if cfg.NATS.Alerts.Enabled {
			return errors.New("nats.alerts.enabled must be false when service.mode=single")
		}
	}
	if mode == ServiceModeNATS {
		if len(cfg.NATS.URL) == 0 {
			return errors.New("nats.url is required")
		}
		if cfg.NATS.Ingest.Enabled {
			if cfg.NATS.Ingest.AckWaitSec <= 0 {
				return errors.New("nats.ingest.ack_wait_sec must be >0 when nats.ingest.enabled=true")
			}
			if cfg.NATS.Ingest.MaxDeliver == 0 || cfg.NATS.Ingest.MaxDeliver < -1 {
				return errors.New("nats.ingest.max_deliver must be -1 or >0")
			}
			if cfg.NATS.Ingest.MaxAckPending <= 0 {
				return errors.New("nats.ingest.max_ack_pending must be >0")
			}
		}
		if cfg.NATS.Ingest.Enabled && cfg.NATS.Alerts.Enabled && cfg.NATS.Ingest.Stream == cfg.NATS.Alerts.Stream {
			return errors.New("nats.alerts.stream must differ from nats.ingest.stream")
		}
	}

	if err := validateNotify(cfg.Notify); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(cfg.Rule))
	for _, rule := range cfg.Rule {
		if err := validateRule(rule); err != nil {
			return err
		}
		if _, ok := seen[rule.ID]; ok {
			return fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = struct{}{}
	}
	return nil
}

// validateRule validates one seed rule.
// Params: rule config.
// Returns: validation error with rule.<id> path.
func validateRule(rule RuleConfig) error {
	if rule.ID == domain.DefaultRuleID {
		return fmt.Errorf("rule.%s is reserved for the built-in rule", rule.ID)
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("rule.%s.name is required", rule.ID)
	}
	if rule.Threshold < 0 || rule.Threshold > 1 {
		return fmt.Errorf("rule.%s.threshold must be within [0,1]", rule.ID)
	}
	if rule.WindowMinutes <= 0 {
		return fmt.Errorf("rule.%s.window_minutes must be >0", rule.ID)
	}
	return nil
}

// validateNotify validates enabled notification channels.
// Params: notify section.
// Returns: validation error with notify.<channel> path.
func validateNotify(cfg NotifyConfig) error {
	if cfg.Webhook.Enabled {
		parsed, err := url.Parse(strings.TrimSpace(cfg.Webhook.URL))
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return errors.New("notify.webhook.url must be an absolute http(s) URL")
		}
		if err := validateNotifyRetry("notify.webhook.retry", cfg.Webhook.Retry); err != nil {
			return err
		}
	}
	if cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required")
		}
		if strings.TrimSpace(cfg.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required")
		}
		if _, err := templatefmt.ParseNotificationTemplate("notify.telegram.template", cfg.Telegram.Template); err != nil {
			return fmt.Errorf("notify.telegram.template is invalid: %w", err)
		}
		if err := validateNotifyRetry("notify.telegram.retry", cfg.Telegram.Retry); err != nil {
			return err
		}
	}
	return nil
}

func validateNotifyRetry(path string, retry NotifyRetry) error {
	if !retry.Enabled {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(retry.Backoff)) {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("%s.backoff has unsupported value %q", path, retry.Backoff)
	}
	if retry.MaxMS < retry.InitialMS {
		return fmt.Errorf("%s.max_ms must be >= initial_ms", path)
	}
	if retry.MaxAttempts < 0 {
		return fmt.Errorf("%s.max_attempts must be >0", path)
	}
	return nil
}

func normalizeNATSURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// NormalizeServiceMode canonicalizes service mode and applies default.
// Params: raw mode value from config.
// Returns: normalized mode (`single` by default).
func NormalizeServiceMode(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ServiceModeSingle
	}
	return normalized
}

// IsSupportedServiceMode reports whether mode value is supported.
// Params: normalized mode value.
// Returns: true for known modes.
func IsSupportedServiceMode(mode string) bool {
	switch NormalizeServiceMode(mode) {
	case ServiceModeNATS, ServiceModeSingle:
		return true
	default:
		return false
	}
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}

	return nil
}

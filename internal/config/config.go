package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Paystack struct {
		SecretKey      string `yaml:"secret_key"`
		PublicKey      string `yaml:"public_key"`
		BaseURL        string `yaml:"base_url"`
		CallbackURL    string `yaml:"callback_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"paystack"`
	Orders struct {
		TTLMinutes int    `yaml:"ttl_minutes"`
		Currency   string `yaml:"currency"`
	} `yaml:"orders"`
	Worker struct {
		SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
		OutboxBatch          int `yaml:"outbox_batch"`
		OutboxMaxAttempts    int `yaml:"outbox_max_attempts"`
	} `yaml:"worker"`
	Invoices struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"invoices"`
	Admin struct {
		Token string `yaml:"token"`
	} `yaml:"admin"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Paystack.SecretKey == "" {
		return nil, errors.New("paystack.secret_key is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Paystack.BaseURL == "" {
		cfg.Paystack.BaseURL = "https://api.paystack.co"
	}
	if cfg.Paystack.TimeoutSeconds <= 0 {
		cfg.Paystack.TimeoutSeconds = 15
	}
	if cfg.Orders.TTLMinutes <= 0 {
		cfg.Orders.TTLMinutes = 30
	}
	if cfg.Orders.Currency == "" {
		cfg.Orders.Currency = "GHS"
	}
	if cfg.Worker.SweepIntervalSeconds <= 0 {
		cfg.Worker.SweepIntervalSeconds = 60
	}
	if cfg.Worker.OutboxBatch <= 0 {
		cfg.Worker.OutboxBatch = 20
	}
	if cfg.Worker.OutboxMaxAttempts <= 0 {
		cfg.Worker.OutboxMaxAttempts = 5
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("PAYSTACK_SECRET_KEY"); v != "" {
		cfg.Paystack.SecretKey = v
	}
	if v := os.Getenv("PAYSTACK_PUBLIC_KEY"); v != "" {
		cfg.Paystack.PublicKey = v
	}
	if v := os.Getenv("PAYSTACK_BASE_URL"); v != "" {
		cfg.Paystack.BaseURL = v
	}
	if v := os.Getenv("PAYSTACK_CALLBACK_URL"); v != "" {
		cfg.Paystack.CallbackURL = v
	}
	if v := os.Getenv("PAYSTACK_TIMEOUT_SECONDS"); v != "" {
		cfg.Paystack.TimeoutSeconds = atoiOr(cfg.Paystack.TimeoutSeconds, v)
	}
	if v := os.Getenv("ORDER_TTL_MINUTES"); v != "" {
		cfg.Orders.TTLMinutes = atoiOr(cfg.Orders.TTLMinutes, v)
	}
	if v := os.Getenv("ORDER_CURRENCY"); v != "" {
		cfg.Orders.Currency = v
	}
	if v := os.Getenv("WORKER_SWEEP_INTERVAL_SECONDS"); v != "" {
		cfg.Worker.SweepIntervalSeconds = atoiOr(cfg.Worker.SweepIntervalSeconds, v)
	}
	if v := os.Getenv("WORKER_OUTBOX_BATCH"); v != "" {
		cfg.Worker.OutboxBatch = atoiOr(cfg.Worker.OutboxBatch, v)
	}
	if v := os.Getenv("WORKER_OUTBOX_MAX_ATTEMPTS"); v != "" {
		cfg.Worker.OutboxMaxAttempts = atoiOr(cfg.Worker.OutboxMaxAttempts, v)
	}
	if v := os.Getenv("INVOICE_BASE_URL"); v != "" {
		cfg.Invoices.BaseURL = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config - 서버 전체 설정. Load 이후 변경하지 않는다.
type Config struct {
	AppEnv string `env:"APP_ENV" env-default:"development"`
	Port   string `env:"PORT" env-default:"8080"`

	Logger     LoggerConfig
	Replicate  ReplicateConfig
	Generation GenerationConfig
	Redis      RedisConfig
	Supabase   SupabaseConfig
	Worker     WorkerConfig
}

// LoggerConfig - zap 로거 설정
type LoggerConfig struct {
	Level    string `env:"LOG_LEVEL" env-default:"info"`
	Encoding string `env:"LOG_ENCODING" env-default:"json"`
}

// ReplicateConfig - 이미지 생성 provider 설정
type ReplicateConfig struct {
	APIToken     string        `env:"REPLICATE_API_TOKEN"`
	APIURL       string        `env:"REPLICATE_API_URL" env-default:"https://api.replicate.com"`
	ModelVersion string        `env:"REPLICATE_MODEL_VERSION" env-default:"evalstate/flux1_schnell"`
	HTTPTimeout  time.Duration `env:"REPLICATE_HTTP_TIMEOUT" env-default:"30s"`
}

// GenerationConfig - polling 한도
type GenerationConfig struct {
	PollInterval    time.Duration `env:"GENERATION_POLL_INTERVAL" env-default:"1s"`
	MaxPollAttempts int           `env:"GENERATION_MAX_POLL_ATTEMPTS" env-default:"120"`
	PollTimeout     time.Duration `env:"GENERATION_POLL_TIMEOUT" env-default:"5m"`
}

// RedisConfig - job queue 용 Redis
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Username string `env:"REDIS_USERNAME"`
	Password string `env:"REDIS_PASSWORD"`
	UseTLS   bool   `env:"REDIS_USE_TLS" env-default:"false"`
}

// SupabaseConfig - 생성 이력 기록용. 비어 있으면 기록하지 않는다.
type SupabaseConfig struct {
	URL        string `env:"SUPABASE_URL"`
	ServiceKey string `env:"SUPABASE_SERVICE_KEY"`
}

// WorkerConfig - 큐 worker 설정
type WorkerConfig struct {
	Concurrency         int           `env:"WORKER_CONCURRENCY" env-default:"4"`
	CancelCheckInterval time.Duration `env:"CANCEL_CHECK_INTERVAL" env-default:"1s"`
	// DrainTimeout - 종료 시 진행 중인 job 을 기다리는 최대 시간. 넘기면 job 을 큐에 되돌린다.
	DrainTimeout time.Duration `env:"WORKER_DRAIN_TIMEOUT" env-default:"25s"`
}

// Load - .env 파일(있으면)과 환경변수에서 설정 로드
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate - 필수 값 검증
func (c *Config) Validate() error {
	if c.Replicate.APIToken == "" {
		return errors.New("REPLICATE_API_TOKEN is required")
	}
	if c.Replicate.APIURL == "" {
		return errors.New("REPLICATE_API_URL is required")
	}
	if c.Generation.PollInterval <= 0 {
		return errors.New("GENERATION_POLL_INTERVAL must be positive")
	}
	if c.Generation.MaxPollAttempts <= 0 {
		return errors.New("GENERATION_MAX_POLL_ATTEMPTS must be positive")
	}
	if c.Generation.PollTimeout <= 0 {
		return errors.New("GENERATION_POLL_TIMEOUT must be positive")
	}
	if c.Worker.Concurrency <= 0 {
		return errors.New("WORKER_CONCURRENCY must be positive")
	}
	return nil
}

// SupabaseEnabled - 생성 이력 기록 여부
func (c *Config) SupabaseEnabled() bool {
	return c.Supabase.URL != "" && c.Supabase.ServiceKey != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

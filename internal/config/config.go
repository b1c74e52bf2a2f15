package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	mebibyte          = 1 << 20
	formOverheadBytes = 1 * mebibyte
)

// Config holds runtime configuration values for the contest API.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	LogLevel    string
	ProxyHeader string

	DatabaseURL string
	RedisURL    string
	NATSURL     string
	NATSSubject string
	RedisEvents string

	JWTSecret   string
	AdminEmails []string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	Mail       MailConfig
	Submission SubmissionConfig

	RateLimitBackend string
	RateLimitWindow  time.Duration
	RateLimitMax     int
	VoteRateLimit    int
	VoteRateWindow   time.Duration

	VoteRetryAttempts int
	VoteTimeout       time.Duration
	ResultsCacheTTL   time.Duration
	ParticipantsFile  string
}

// MailConfig configures the outbound mail collaborator.
type MailConfig struct {
	Driver     string
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	UseSSL     bool
	Timeout    time.Duration
	AdminEmail string
}

// SubmissionConfig carries the application acceptance policy.
type SubmissionConfig struct {
	StudentDomain     string
	StaffDomain       string
	AllowedImageTypes []string
	MinFileBytes      int64
	MaxFileBytes      int64
	MinAttachments    int
	MaxAttachments    int
	MaxTotalBytes     int64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// RequestBodyLimit is the HTTP body ceiling. It admits MaxAttachments files of
// MaxFileBytes each plus form overhead, so oversized applications reach the
// submission rules and get a field level answer.
func (c Config) RequestBodyLimit() int {
	files := int64(c.Submission.MaxAttachments) * c.Submission.MaxFileBytes
	if c.Submission.MaxTotalBytes > files {
		files = c.Submission.MaxTotalBytes
	}
	return int(files + formOverheadBytes)
}

// IsAdminEmail reports whether the address is on the configured admin list.
func (c Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	cfg, err := read()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadTooling reads the same environment as Load but skips the checks that
// only the HTTP server needs, such as the JWT secret and mail settings.
func LoadTooling() (Config, error) {
	return read()
}

func read() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CONTEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Photo Contest API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("nats.subject", "contest.votes")
	v.SetDefault("redis.events", "contest:votes")
	v.SetDefault("cloudinary.folder", "contest/photos")

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.timeout", "15s")

	v.SetDefault("student.domain", "ogr.dpu.edu.tr")
	v.SetDefault("staff.domain", "dpu.edu.tr")
	v.SetDefault("allowed.image.types", "image/jpeg,image/png")
	v.SetDefault("min.file.bytes", 1*mebibyte)
	v.SetDefault("max.file.bytes", 10*mebibyte)
	v.SetDefault("min.attachments", 1)
	v.SetDefault("max.attachments", 3)
	v.SetDefault("max.total.bytes", 20*mebibyte)

	v.SetDefault("rate.limit.backend", "memory")
	v.SetDefault("rate.limit.window", "30m")
	v.SetDefault("rate.limit.max", 5)
	v.SetDefault("vote.rate.limit", 60)
	v.SetDefault("vote.rate.window", "1m")

	v.SetDefault("vote.retry.attempts", 5)
	v.SetDefault("vote.timeout", "5s")
	v.SetDefault("results.cache.ttl", "30s")
	v.SetDefault("participants.file", "participants.xlsx")

	durations := map[string]time.Duration{}
	for _, key := range []string{"mail.timeout", "rate.limit.window", "vote.rate.window", "vote.timeout", "results.cache.ttl"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:     v.GetString("app.name"),
		AppEnv:      v.GetString("app.env"),
		AppPort:     v.GetString("app.port"),
		LogLevel:    strings.ToLower(v.GetString("log.level")),
		ProxyHeader: v.GetString("proxy.header"),

		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),
		NATSURL:     v.GetString("nats.url"),
		NATSSubject: v.GetString("nats.subject"),
		RedisEvents: v.GetString("redis.events"),

		JWTSecret:   v.GetString("jwt.secret"),
		AdminEmails: normalizeList(v.GetString("admin.emails"), true),

		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),

		Mail: MailConfig{
			Driver:     strings.ToLower(v.GetString("mail.driver")),
			Host:       v.GetString("mail.host"),
			Port:       v.GetInt("mail.port"),
			Username:   v.GetString("mail.username"),
			Password:   v.GetString("mail.password"),
			From:       v.GetString("mail.from"),
			UseSSL:     v.GetBool("mail.ssl"),
			Timeout:    durations["mail.timeout"],
			AdminEmail: v.GetString("admin.email"),
		},
		Submission: SubmissionConfig{
			StudentDomain:     strings.ToLower(v.GetString("student.domain")),
			StaffDomain:       strings.ToLower(v.GetString("staff.domain")),
			AllowedImageTypes: normalizeList(v.GetString("allowed.image.types"), true),
			MinFileBytes:      v.GetInt64("min.file.bytes"),
			MaxFileBytes:      v.GetInt64("max.file.bytes"),
			MinAttachments:    v.GetInt("min.attachments"),
			MaxAttachments:    v.GetInt("max.attachments"),
			MaxTotalBytes:     v.GetInt64("max.total.bytes"),
		},

		RateLimitBackend: strings.ToLower(v.GetString("rate.limit.backend")),
		RateLimitWindow:  durations["rate.limit.window"],
		RateLimitMax:     v.GetInt("rate.limit.max"),
		VoteRateLimit:    v.GetInt("vote.rate.limit"),
		VoteRateWindow:   durations["vote.rate.window"],

		VoteRetryAttempts: v.GetInt("vote.retry.attempts"),
		VoteTimeout:       durations["vote.timeout"],
		ResultsCacheTTL:   durations["results.cache.ttl"],
		ParticipantsFile:  v.GetString("participants.file"),
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	if c.Mail.AdminEmail == "" {
		return fmt.Errorf("admin notification address must be provided")
	}

	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			return fmt.Errorf("smtp driver requires mail host and from address")
		}
	default:
		return fmt.Errorf("unsupported mail driver %q", c.Mail.Driver)
	}

	switch c.RateLimitBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("redis rate limit backend requires redis url")
		}
	default:
		return fmt.Errorf("unsupported rate limit backend %q", c.RateLimitBackend)
	}

	s := c.Submission
	if len(s.AllowedImageTypes) == 0 {
		return fmt.Errorf("at least one image type must be allowed")
	}
	if s.MinAttachments < 1 || s.MaxAttachments < s.MinAttachments {
		return fmt.Errorf("invalid attachment bounds %d..%d", s.MinAttachments, s.MaxAttachments)
	}
	if s.MinFileBytes < 0 || s.MaxFileBytes < s.MinFileBytes {
		return fmt.Errorf("invalid file size bounds %d..%d", s.MinFileBytes, s.MaxFileBytes)
	}
	if s.MaxTotalBytes <= 0 {
		return fmt.Errorf("total attachment ceiling must be positive")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window and max must be positive")
	}
	if c.VoteRetryAttempts < 1 {
		return fmt.Errorf("vote retry attempts must be at least 1")
	}

	return nil
}

func normalizeList(raw string, lower bool) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if lower {
			trimmed = strings.ToLower(trimmed)
		}
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

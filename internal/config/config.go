package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	LogLevel  string
	LogPretty bool

	OCRPdftoppmBin  string
	OCRTesseractBin string
	OCRLanguage     string
	OCRDPI          int
	OCRMaxPages     int
	TextLayerMinLen int

	FieldMatchThreshold  int
	FieldConfidenceCap   int
	HighQualityThreshold float64
	MediumQualityFloor   float64
	ReviewThreshold      float64
	DemographicThreshold int

	FeedBaseURL       string
	FeedAPIToken      string
	FeedDocDir        string
	FeedRateLimitRPS  int
	FeedTimeoutMs     int
	FeedLookbackHours int
	FeedRefreshDays   int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvBool("LOG_PRETTY", true),

		OCRPdftoppmBin:  getEnv("OCR_PDFTOPPM_BIN", "pdftoppm"),
		OCRTesseractBin: getEnv("OCR_TESSERACT_BIN", "tesseract"),
		OCRLanguage:     getEnv("OCR_LANGUAGE", "eng"),
		OCRDPI:          getEnvInt("OCR_DPI", 300),
		OCRMaxPages:     getEnvInt("OCR_MAX_PAGES", 10),
		TextLayerMinLen: getEnvInt("TEXT_LAYER_MIN_LEN", 100),

		FieldMatchThreshold:  getEnvInt("FIELD_MATCH_THRESHOLD", 70),
		FieldConfidenceCap:   getEnvInt("FIELD_CONFIDENCE_CAP", 95),
		HighQualityThreshold: getEnvFloat("HIGH_QUALITY_THRESHOLD", 80),
		MediumQualityFloor:   getEnvFloat("MEDIUM_QUALITY_FLOOR", 60),
		ReviewThreshold:      getEnvFloat("REVIEW_THRESHOLD", 70),
		DemographicThreshold: getEnvInt("DEMOGRAPHIC_THRESHOLD", 70),

		FeedBaseURL:       getEnv("LAB_FEED_BASE_URL", ""),
		FeedAPIToken:      getEnv("LAB_FEED_API_TOKEN", ""),
		FeedDocDir:        getEnv("LAB_FEED_DOC_DIR", filepath.Join(cwd, "data", "feed")),
		FeedRateLimitRPS:  getEnvInt("LAB_FEED_RATE_LIMIT_RPS", 5),
		FeedTimeoutMs:     getEnvInt("LAB_FEED_TIMEOUT_MS", 30000),
		FeedLookbackHours: getEnvInt("LAB_FEED_INCREMENTAL_HOURS", 24),
		FeedRefreshDays:   getEnvInt("LAB_FEED_REFRESH_DAYS", 30),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 30),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

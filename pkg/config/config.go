package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the backend. Defaults match the sizes the
// adapters and processors were calibrated against; override via environment
// or a .env file.
type Config struct {
	Port           string
	LogLevel       string
	DatabasePath   string
	AttachmentsDir string

	CredentialsPath string
	CredentialsKey  string

	// Mail
	MailTransport      string // "gmail" or "imap"
	GoogleClientID     string
	GoogleClientSecret string
	MailQueryDomains   []string
	MailQueryKeywords  []string
	MailMaxPages       int
	MailPageSize       int64
	IMAPServer         string
	IMAPPort           int
	IMAPUsername       string
	IMAPPassword       string

	// Childcare
	ChildcareBaseURL  string
	ChildcarePageSize int
	ChildcareMaxPages int

	// Messaging
	MessagingBridgeURL string

	// Summaries
	GeminiAPIKey   string
	GeminiModel    string
	OllamaBaseURL  string
	OllamaModel    string
	RollingDays    int
	StudentContext string

	// Attachments
	PDFMaxBytes int64

	// Scheduler, empty disables the job
	SyncCron    string
	SummaryCron string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabasePath:   getEnv("DATABASE_PATH", "schoolcomms.db"),
		AttachmentsDir: getEnv("ATTACHMENTS_DIR", "attachments"),

		CredentialsPath: getEnv("CREDENTIALS_PATH", "credentials.json"),
		CredentialsKey:  getEnv("CREDENTIALS_KEY", ""),

		MailTransport:      getEnv("MAIL_TRANSPORT", "gmail"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		MailQueryDomains:   getEnvList("MAIL_QUERY_DOMAINS"),
		MailQueryKeywords:  getEnvList("MAIL_QUERY_KEYWORDS"),
		MailMaxPages:       getEnvInt("MAIL_MAX_PAGES", 10),
		MailPageSize:       int64(getEnvInt("MAIL_PAGE_SIZE", 50)),
		IMAPServer:         getEnv("IMAP_SERVER", ""),
		IMAPPort:           getEnvInt("IMAP_PORT", 993),
		IMAPUsername:       getEnv("IMAP_USERNAME", ""),
		IMAPPassword:       getEnv("IMAP_PASSWORD", ""),

		ChildcareBaseURL:  getEnv("CHILDCARE_BASE_URL", ""),
		ChildcarePageSize: getEnvInt("CHILDCARE_PAGE_SIZE", 50),
		ChildcareMaxPages: getEnvInt("CHILDCARE_MAX_PAGES", 20),

		MessagingBridgeURL: getEnv("MESSAGING_BRIDGE_URL", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", ""),
		OllamaModel:    getEnv("OLLAMA_MODEL", "llama3.1"),
		RollingDays:    getEnvInt("ROLLING_DAYS", 8),
		StudentContext: getEnv("STUDENT_CONTEXT", ""),

		PDFMaxBytes: int64(getEnvInt("PDF_MAX_BYTES", 10*1024*1024)),

		SyncCron:    getEnv("SYNC_CRON", ""),
		SummaryCron: getEnv("SUMMARY_CRON", ""),
	}
}

// ValidateMail fails fast when the selected mail transport is unusable, so
// a sync pass never dies halfway through a page loop instead.
func (c *Config) ValidateMail() error {
	switch c.MailTransport {
	case "gmail":
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
			return fmt.Errorf("mail transport gmail requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
		}
	case "imap":
		if c.IMAPServer == "" || c.IMAPUsername == "" || c.IMAPPassword == "" {
			return fmt.Errorf("mail transport imap requires IMAP_SERVER, IMAP_USERNAME and IMAP_PASSWORD")
		}
	default:
		return fmt.Errorf("unknown mail transport %q (expected gmail or imap)", c.MailTransport)
	}
	return nil
}

// ValidateChildcare fails fast when the childcare adapter cannot run.
func (c *Config) ValidateChildcare() error {
	if c.ChildcareBaseURL == "" {
		return fmt.Errorf("childcare sync requires CHILDCARE_BASE_URL")
	}
	return nil
}

// ValidateAI fails fast when no summarization backend is configured.
func (c *Config) ValidateAI() error {
	if c.GeminiAPIKey == "" && c.OllamaBaseURL == "" {
		return fmt.Errorf("summaries require GEMINI_API_KEY or OLLAMA_BASE_URL")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

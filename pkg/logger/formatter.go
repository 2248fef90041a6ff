package logger

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Keys whose values are secrets in this system: OTP codes, tracking link tokens,
// push tokens and signing material.
var redactedKeys = map[string]bool{
	"code":          true,
	"otp":           true,
	"token":         true,
	"push_token":    true,
	"password":      true,
	"secret":        true,
	"authorization": true,
	"signature":     true,
}

func newFormatter(config *Config) logrus.Formatter {
	timeFormat := config.TimeFormat
	if config.Format == "json" {
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		return &logrus.JSONFormatter{
			TimestampFormat: timeFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
				logrus.FieldKeyFile:  "caller",
				logrus.FieldKeyLevel: "level",
			},
		}
	}

	if timeFormat == "" {
		timeFormat = "2006-01-02 15:04:05"
	}
	return &logrus.TextFormatter{
		TimestampFormat: timeFormat,
		FullTimestamp:   true,
		ForceColors:     config.Colors,
		DisableColors:   !config.Colors && !isTerminal(),
		SortingFunc:     sortFields,
	}
}

// sortFields puts the event type first so text logs scan by kind.
func sortFields(keys []string) {
	for i, k := range keys {
		if k == "type" && i > 0 {
			copy(keys[1:i+1], keys[:i])
			keys[0] = k
			return
		}
	}
}

func appFields(config *Config) logrus.Fields {
	fields := logrus.Fields{}
	if config.AppName != "" {
		fields["app"] = config.AppName
	}
	if config.Version != "" {
		fields["version"] = config.Version
	}
	return fields
}

type staticFieldsHook struct {
	fields logrus.Fields
}

func (h *staticFieldsHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *staticFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// redactHook masks secret values before any formatter sees them.
type redactHook struct{}

func (redactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (redactHook) Fire(entry *logrus.Entry) error {
	for k, v := range entry.Data {
		if redactedKeys[strings.ToLower(k)] {
			entry.Data[k] = redact(v)
		}
	}
	return nil
}

func redact(v interface{}) string {
	s, ok := v.(string)
	if !ok || len(s) <= 4 {
		return "[redacted]"
	}
	return s[:2] + strings.Repeat("*", len(s)-2)
}

func isTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// AuditLogger writes entries for ledger mutations that must be traceable.
type AuditLogger struct {
	logger *Logger
}

// NewAuditLoggerFrom derives the audit logger from an application logger.
func NewAuditLoggerFrom(logger *Logger) *AuditLogger {
	return &AuditLogger{logger: logger.WithField("audit", true)}
}

func (a *AuditLogger) LogVIPPurchase(userID string, level int, paymentReference string, price float64, previousLevel int, duplicate bool) {
	a.logger.WithFields(map[string]interface{}{
		"user_id":           userID,
		"level":             level,
		"payment_reference": paymentReference,
		"price":             price,
		"previous_level":    previousLevel,
		"duplicate":         duplicate,
		"type":              "vip_purchase_audit",
	}).Info("VIP purchase audit logged")
}

func (a *AuditLogger) LogReferralAward(referrerID, newUserID string, pointsBefore, pointsAfter, freeRidesGranted int) {
	a.logger.WithFields(map[string]interface{}{
		"referrer_id":        referrerID,
		"new_user_id":        newUserID,
		"points_before":      pointsBefore,
		"points_after":       pointsAfter,
		"free_rides_granted": freeRidesGranted,
		"type":               "referral_audit",
	}).Info("Referral award audit logged")
}

package logger

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// SecurityLogger provides methods to safely log sensitive information.
// SERP API credentials are paid account secrets and keyword sets reveal
// client SEO strategy, so neither may appear in log output verbatim.
type SecurityLogger struct {
	*Logger
}

// NewSecurityLogger creates a new security-aware logger
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		Logger: GetLogger(),
	}
}

// MaskCredential masks an API login or password, keeping only a short hash
// so two runs with the same account can still be correlated.
func (sl *SecurityLogger) MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	return "cred#" + sl.generateHash(credential)[:8]
}

// MaskAPIEndpoint masks SERP API endpoints, keeping the host for identification
func (sl *SecurityLogger) MaskAPIEndpoint(apiURL string) string {
	if apiURL == "" {
		return ""
	}

	parsedURL, err := url.Parse(apiURL)
	if err != nil || parsedURL.Host == "" {
		return "api-endpoint#" + sl.generateHash(apiURL)[:8]
	}

	return fmt.Sprintf("%s/api#%s", parsedURL.Host, sl.generateHash(apiURL)[:8])
}

// MaskKeywords reduces a keyword list to a count plus a short sample
func (sl *SecurityLogger) MaskKeywords(keywords []string) interface{} {
	if len(keywords) == 0 {
		return "no_keywords"
	}

	if len(keywords) <= 3 {
		return fmt.Sprintf("keywords_count=%d", len(keywords))
	}

	return fmt.Sprintf("keywords_count=%d,sample=[%s,%s,...]",
		len(keywords), keywords[0], keywords[1])
}

// MaskSensitiveData masks credentials, endpoints, and keyword lists in a field map
func (sl *SecurityLogger) MaskSensitiveData(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{})

	for key, value := range data {
		lowerKey := strings.ToLower(key)

		switch {
		case strings.Contains(lowerKey, "password") || strings.Contains(lowerKey, "login") ||
			strings.Contains(lowerKey, "secret") || strings.Contains(lowerKey, "token"):
			if str, ok := value.(string); ok {
				masked[key] = sl.MaskCredential(str)
			} else {
				masked[key] = "***"
			}
		case strings.Contains(lowerKey, "endpoint") || strings.Contains(lowerKey, "url"):
			if str, ok := value.(string); ok {
				masked[key] = sl.MaskAPIEndpoint(str)
			} else {
				masked[key] = value
			}
		case strings.Contains(lowerKey, "keyword") || strings.Contains(lowerKey, "quer"):
			if keywords, ok := value.([]string); ok {
				masked[key] = sl.MaskKeywords(keywords)
			} else {
				masked[key] = value
			}
		default:
			masked[key] = value
		}
	}

	return masked
}

// ErrorWithEndpoint logs an error tied to an API endpoint without exposing it
func (sl *SecurityLogger) ErrorWithEndpoint(msg string, endpoint string, err error, extraFields map[string]interface{}) {
	fields := map[string]interface{}{
		"endpoint": sl.MaskAPIEndpoint(endpoint),
		"error":    err.Error(),
	}

	if extraFields != nil {
		maskedExtra := sl.MaskSensitiveData(extraFields)
		for k, v := range maskedExtra {
			fields[k] = v
		}
	}

	sl.Logger.WithFields(fields).Error(msg)
}

// Helper for stable, non-reversible identifiers in log output
func (sl *SecurityLogger) generateHash(data string) string {
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:8]) // 只取前8字节，保持日志紧凑
}

// GenerateHash exports the hash function for callers outside the package
func (sl *SecurityLogger) GenerateHash(data string) string {
	return sl.generateHash(data)
}

// MaskLogMessage masks sensitive information embedded in free-form messages
func (sl *SecurityLogger) MaskLogMessage(message string) string {
	// Basic-auth URLs leak credentials in the userinfo part
	authURLRegex := regexp.MustCompile(`https?://[^/\s@]+@[^\s]+`)
	masked := authURLRegex.ReplaceAllStringFunc(message, func(u string) string {
		return sl.MaskAPIEndpoint(u)
	})

	// Common secret patterns: key=..., token: ..., password=...
	apiKeyRegex := regexp.MustCompile(`(?i)(key|token|secret|password|login)[=:]\s*[^\s,;]+`)
	masked = apiKeyRegex.ReplaceAllString(masked, "${1}=***")

	return masked
}

// SafeInfo logs info with automatic sensitive data masking
func (sl *SecurityLogger) SafeInfo(msg string, fields map[string]interface{}) {
	if fields != nil {
		maskedFields := sl.MaskSensitiveData(fields)
		sl.Logger.WithFields(maskedFields).Info(sl.MaskLogMessage(msg))
	} else {
		sl.Logger.Info(sl.MaskLogMessage(msg))
	}
}

// SafeError logs error with automatic sensitive data masking
func (sl *SecurityLogger) SafeError(msg string, err error, fields map[string]interface{}) {
	maskedFields := map[string]interface{}{
		"error": sl.MaskLogMessage(err.Error()),
	}

	if fields != nil {
		masked := sl.MaskSensitiveData(fields)
		for k, v := range masked {
			maskedFields[k] = v
		}
	}

	sl.Logger.WithFields(maskedFields).Error(sl.MaskLogMessage(msg))
}

// SafeWarn logs warning with automatic sensitive data masking
func (sl *SecurityLogger) SafeWarn(msg string, fields map[string]interface{}) {
	if fields != nil {
		maskedFields := sl.MaskSensitiveData(fields)
		sl.Logger.WithFields(maskedFields).Warn(sl.MaskLogMessage(msg))
	} else {
		sl.Logger.Warn(sl.MaskLogMessage(msg))
	}
}

// SafeDebug logs debug with automatic sensitive data masking
func (sl *SecurityLogger) SafeDebug(msg string, fields map[string]interface{}) {
	if fields != nil {
		maskedFields := sl.MaskSensitiveData(fields)
		sl.Logger.WithFields(maskedFields).Debug(sl.MaskLogMessage(msg))
	} else {
		sl.Logger.Debug(sl.MaskLogMessage(msg))
	}
}

// GetSecurityLogger returns a singleton security logger
var securityLoggerInstance *SecurityLogger

func GetSecurityLogger() *SecurityLogger {
	if securityLoggerInstance == nil {
		securityLoggerInstance = NewSecurityLogger()
	}
	return securityLoggerInstance
}

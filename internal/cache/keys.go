package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CaptionKey derives a deterministic key from the semantically significant
// request fields. Topic casing is insignificant; style, template, and
// variation count are not.
func CaptionKey(topic, style, templateID string, variationCount int) string {
	data := fmt.Sprintf("%s:%s:%s:%d", strings.ToLower(topic), style, templateID, variationCount)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:16])
}

func TemplateKey(templateID string) string {
	return templateID
}

func JobResultKey(jobID uuid.UUID) string {
	return jobID.String()
}

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/captcha"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/config"
)

const (
	// ContextKeyIsHumanVerified holds the key for captcha status in Gin context.
	ContextKeyIsHumanVerified = "isHumanVerified"
)

// CaptchaMiddleware handles Cloudflare Turnstile verification (X-C-V) and
// human token (X-C-T) checks. It never aborts; the rate limiter decides what
// to do with unverified clients.
func CaptchaMiddleware(cfg *config.Config, verifier captcha.ITurnstileVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		humanToken := c.GetHeader("X-C-T")
		turnstileChallenge := c.GetHeader("X-C-V")

		isHuman := false

		if humanToken != "" && verifier.ValidateHumanToken(humanToken, clientIP) {
			isHuman = true
		}

		if !isHuman && turnstileChallenge != "" {
			verified, err := verifier.Verify(c.Request.Context(), turnstileChallenge, clientIP)
			if err != nil {
				log.Printf("Error verifying Turnstile token: %v", err)
			} else if verified {
				isHuman = true
				newToken, tokenErr := verifier.GenerateHumanToken(clientIP, cfg.CaptchaTokenTTL)
				if tokenErr != nil {
					log.Printf("Error generating X-C-T token after successful verification: %v", tokenErr)
				} else {
					c.Header("X-C-T", newToken)
				}
			}
		}

		c.Set(ContextKeyIsHumanVerified, isHuman)
		c.Next()
	}
}

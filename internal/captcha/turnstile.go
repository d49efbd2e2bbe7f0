package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/config"
)

// ITurnstileVerifier defines the interface for verifying Cloudflare Turnstile tokens.
type ITurnstileVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
	GenerateHumanToken(ip string, ttl time.Duration) (string, error)
	ValidateHumanToken(tokenString, ip string) bool
}

// CloudflareResponse is the expected structure from the siteverify endpoint.
type CloudflareResponse struct {
	Success     bool     `json:"success"`
	ErrorCodes  []string `json:"error-codes"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
}

// turnstileVerifier implements ITurnstileVerifier.
type turnstileVerifier struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewTurnstileVerifier creates a new Turnstile verifier.
func NewTurnstileVerifier(cfg *config.Config) ITurnstileVerifier {
	return &turnstileVerifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Verify calls the Cloudflare siteverify endpoint.
func (v *turnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if v.cfg.CloudflareTurnstileSecretKey == "" {
		log.Println("WARN: Cloudflare Turnstile secret key not configured. Skipping verification.")
		return true, nil
	}

	formData := map[string]string{
		"secret":   v.cfg.CloudflareTurnstileSecretKey,
		"response": token,
	}
	if remoteIP != "" {
		formData["remoteip"] = remoteIP
	}

	jsonData, _ := json.Marshal(formData)
	req, err := http.NewRequestWithContext(ctx, "POST", v.cfg.CloudflareSiteVerifyURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return false, fmt.Errorf("failed to create turnstile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to contact turnstile service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read turnstile response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Turnstile siteverify returned non-OK status: %d - Body: %s", resp.StatusCode, string(body))
		return false, fmt.Errorf("turnstile verification failed with status %d", resp.StatusCode)
	}

	var cfResp CloudflareResponse
	if err := json.Unmarshal(body, &cfResp); err != nil {
		return false, fmt.Errorf("failed to parse turnstile response: %w", err)
	}

	if !cfResp.Success {
		log.Printf("Turnstile verification unsuccessful. Error codes: %v", cfResp.ErrorCodes)
	}

	return cfResp.Success, nil
}

// HumanTokenClaims is the payload of the short-lived token issued after a
// successful captcha so the user is not re-challenged on every submission.
type HumanTokenClaims struct {
	IP                   string `json:"ip"`
	jwt.RegisteredClaims
}

// GenerateHumanToken creates a signed token confirming successful captcha validation.
func (v *turnstileVerifier) GenerateHumanToken(ip string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &HumanTokenClaims{
		IP: ip,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "voices-captcha",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(v.cfg.JwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign human token: %w", err)
	}
	return tokenString, nil
}

// ValidateHumanToken validates a human token against the requesting IP.
func (v *turnstileVerifier) ValidateHumanToken(tokenString, ip string) bool {
	claims := &HumanTokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.cfg.JwtSecret), nil
	})
	if err != nil || !token.Valid {
		log.Printf("Invalid human token: %v", err)
		return false
	}

	if claims.IP != ip {
		log.Printf("Human token IP mismatch: token=%s request=%s", claims.IP, ip)
		return false
	}
	return true
}

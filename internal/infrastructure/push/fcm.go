package push

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	googleTokenURL = "https://oauth2.googleapis.com/token"
	fcmScope       = "https://www.googleapis.com/auth/firebase.messaging"
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// Config holds the Firebase service-account credentials read at startup.
type Config struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string // PEM-encoded RSA key
	Timeout     time.Duration
}

// FCMClient sends topic messages through the FCM HTTP v1 API. Access tokens
// are minted from a service-account JWT assertion and cached until shortly
// before expiry.
type FCMClient struct {
	projectID   string
	clientEmail string
	signingKey  *rsa.PrivateKey
	httpClient  *http.Client

	tokenURL string
	sendURL  string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewFCMClient(cfg Config) (*FCMClient, error) {
	if cfg.ProjectID == "" || cfg.ClientEmail == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("firebase credentials are not configured")
	}

	// .env files carry the key with literal \n escapes
	pem := strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("failed to parse firebase private key: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &FCMClient{
		projectID:   cfg.ProjectID,
		clientEmail: cfg.ClientEmail,
		signingKey:  key,
		httpClient:  &http.Client{Timeout: timeout},
		tokenURL:    googleTokenURL,
		sendURL:     fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", cfg.ProjectID),
	}, nil
}

// SendToTopic delivers a notification plus data payload to every subscriber
// of the topic.
func (c *FCMClient) SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain FCM access token: %w", err)
	}

	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"topic": topic,
			"notification": map[string]string{
				"title": title,
				"body":  body,
			},
			"data": data,
		},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode FCM message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("FCM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("FCM returned status %d: %s", resp.StatusCode, string(snippet))
	}

	return nil
}

func (c *FCMClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.clientEmail,
		"scope": fcmScope,
		"aud":   c.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign service account assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty access token")
	}

	c.accessToken = tokenResp.AccessToken
	// renew a minute early so an in-flight send never carries a stale token
	c.tokenExpiry = now.Add(time.Duration(tokenResp.ExpiresIn)*time.Second - time.Minute)

	return c.accessToken, nil
}

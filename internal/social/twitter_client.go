package social

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://api.twitter.com/2"

var (
	// ErrThrottled matches any throttled post attempt.
	ErrThrottled = errors.New("twitter rate limited")
	// ErrNotConfigured is returned when posting credentials are missing.
	ErrNotConfigured = errors.New("twitter posting credentials not configured")
)

// RateLimitError is returned for a 429 from the posting endpoint.
type RateLimitError struct {
	Reset time.Time // zero when the response carried no reset hint
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return ErrThrottled.Error()
	}
	return fmt.Sprintf("%s until %s", ErrThrottled, e.Reset.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error {
	return ErrThrottled
}

// TwitterClient posts to the v2 API with OAuth 1.0a user credentials.
type TwitterClient struct {
	apiKey            string
	apiSecret         string
	accessToken       string
	accessTokenSecret string
	baseURL           string
	httpClient        *http.Client
	logger            *slog.Logger
}

// NewTwitterClient creates a posting client. baseURL may be empty.
func NewTwitterClient(apiKey, apiSecret, accessToken, accessTokenSecret, baseURL string, logger *slog.Logger) *TwitterClient {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &TwitterClient{
		apiKey:            apiKey,
		apiSecret:         apiSecret,
		accessToken:       accessToken,
		accessTokenSecret: accessTokenSecret,
		baseURL:           strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Configured reports whether all four OAuth credentials are present.
func (c *TwitterClient) Configured() bool {
	return c.apiKey != "" && c.apiSecret != "" && c.accessToken != "" && c.accessTokenSecret != ""
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"errors,omitempty"`
}

// PostTweet publishes text and returns the platform-assigned post id.
func (c *TwitterClient) PostTweet(ctx context.Context, text string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	apiURL := c.baseURL + "/tweets"

	bodyBytes, err := json.Marshal(tweetRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal tweet request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// JSON bodies are not part of the OAuth 1.0a signature base.
	authHeader, err := c.generateOAuthHeader(http.MethodPost, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate OAuth header: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post tweet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		rle := &RateLimitError{}
		if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
			if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
				rle.Reset = time.Unix(epoch, 0)
			}
		}
		return "", rle
	}

	bodyBytes, err = io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var tweetResp tweetResponse
	if err := json.Unmarshal(bodyBytes, &tweetResp); err != nil {
		return "", fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusCreated {
		if len(tweetResp.Errors) > 0 {
			return "", fmt.Errorf("twitter API error: %s", tweetResp.Errors[0].Message)
		}
		return "", fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	c.logger.Info("tweet posted successfully",
		"tweet_id", tweetResp.Data.ID,
		"text_length", len([]rune(text)))

	return tweetResp.Data.ID, nil
}

// generateOAuthHeader generates OAuth 1.0a authorization header
func (c *TwitterClient) generateOAuthHeader(method, apiURL string, params map[string]string) (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	nonceStr := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base64.StdEncoding.EncodeToString(nonce))

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	oauthParams := map[string]string{
		"oauth_consumer_key":     c.apiKey,
		"oauth_nonce":            nonceStr,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        timestamp,
		"oauth_token":            c.accessToken,
		"oauth_version":          "1.0",
	}

	oauthParams["oauth_signature"] = c.sign(method, apiURL, oauthParams, params)

	var authPairs []string
	for k, v := range oauthParams {
		authPairs = append(authPairs, url.QueryEscape(k)+"=\""+url.QueryEscape(v)+"\"")
	}
	sort.Strings(authPairs)

	return "OAuth " + strings.Join(authPairs, ", "), nil
}

// sign computes the HMAC-SHA1 signature over the sorted parameter string.
func (c *TwitterClient) sign(method, apiURL string, oauthParams, params map[string]string) string {
	var paramPairs []string
	for k, v := range oauthParams {
		paramPairs = append(paramPairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	for k, v := range params {
		paramPairs = append(paramPairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	sort.Strings(paramPairs)
	paramString := strings.Join(paramPairs, "&")

	signatureBase := method + "&" + url.QueryEscape(apiURL) + "&" + url.QueryEscape(paramString)
	signingKey := url.QueryEscape(c.apiSecret) + "&" + url.QueryEscape(c.accessTokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(signatureBase))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/campusbites/campus-bites/utils"
)

// DarajaConfig holds the mobile-money provider credentials.
type DarajaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	IsProduction   bool
	// BaseURL overrides the provider endpoint; used by tests.
	BaseURL string
}

// DarajaService issues STK push requests against the provider API.
type DarajaService struct {
	config     *DarajaConfig
	httpClient *http.Client

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var (
	darajaService *DarajaService
	darajaOnce    sync.Once
)

// GetDarajaService returns the singleton instance configured from environment
// variables.
func GetDarajaService() *DarajaService {
	darajaOnce.Do(func() {
		darajaService = NewDarajaService(&DarajaConfig{
			ConsumerKey:    os.Getenv("DARAJA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("DARAJA_CONSUMER_SECRET"),
			ShortCode:      os.Getenv("DARAJA_SHORTCODE"),
			PassKey:        os.Getenv("DARAJA_PASSKEY"),
			CallbackURL:    os.Getenv("DARAJA_CALLBACK_URL"),
			IsProduction:   os.Getenv("DARAJA_ENV") == "production",
		})
	})
	return darajaService
}

// NewDarajaService creates a new instance of DarajaService
func NewDarajaService(config *DarajaConfig) *DarajaService {
	return &DarajaService{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ValidateConfig validates the provider configuration
func (ds *DarajaService) ValidateConfig() error {
	if ds.config.ConsumerKey == "" {
		return fmt.Errorf("DARAJA_CONSUMER_KEY is not set")
	}
	if ds.config.ConsumerSecret == "" {
		return fmt.Errorf("DARAJA_CONSUMER_SECRET is not set")
	}
	if ds.config.ShortCode == "" {
		return fmt.Errorf("DARAJA_SHORTCODE is not set")
	}
	if ds.config.PassKey == "" {
		return fmt.Errorf("DARAJA_PASSKEY is not set")
	}
	if ds.config.CallbackURL == "" {
		return fmt.Errorf("DARAJA_CALLBACK_URL is not set")
	}
	return nil
}

func (ds *DarajaService) baseURL() string {
	if ds.config.BaseURL != "" {
		return ds.config.BaseURL
	}
	if ds.config.IsProduction {
		return "https://api.safaricom.co.ke"
	}
	return "https://sandbox.safaricom.co.ke"
}

// GetAccessToken fetches a short-lived bearer token via the client-credentials
// grant, caching it until shortly before expiry.
func (ds *DarajaService) GetAccessToken() (string, error) {
	ds.tokenMu.Lock()
	defer ds.tokenMu.Unlock()

	if ds.accessToken != "" && time.Now().Before(ds.tokenExpiry) {
		return ds.accessToken, nil
	}

	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", ds.baseURL())
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating token request: %v", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(ds.config.ConsumerKey + ":" + ds.config.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept", "application/json")

	resp, err := ds.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error requesting token: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading token response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint error: %s", string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("error unmarshaling token response: %v", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	expiresIn, err := strconv.Atoi(tokenResp.ExpiresIn)
	if err != nil || expiresIn <= 0 {
		expiresIn = 3600
	}

	ds.accessToken = tokenResp.AccessToken
	// 60s safety margin so an almost-expired token is never reused.
	ds.tokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)

	return ds.accessToken, nil
}

// Password derives the provider password for a request: the business short
// code concatenated with the pass key and timestamp, base64 encoded.
func (ds *DarajaService) Password(t time.Time) (password, timestamp string) {
	timestamp = t.Format("20060102150405")
	password = base64.StdEncoding.EncodeToString([]byte(ds.config.ShortCode + ds.config.PassKey + timestamp))
	return password, timestamp
}

var phonePattern = regexp.MustCompile(`^254[17]\d{8}$`)

// NormalizePhone converts 07XXXXXXXX / +2547XXXXXXXX forms into the
// international 2547XXXXXXXX format the provider expects.
func NormalizePhone(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") {
		p = "254" + p[1:]
	}
	if !phonePattern.MatchString(p) {
		return "", fmt.Errorf("invalid phone number: %s", phone)
	}
	return p, nil
}

// STKPushResponse is the provider's synchronous acknowledgement.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiateSTKPush submits a push-payment request. The amount is rounded up to
// whole shillings. There is no retry and no idempotency token: each call is a
// fresh provider request.
func (ds *DarajaService) InitiateSTKPush(phone string, amount float64, accountRef, description string) (*STKPushResponse, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %.2f", amount)
	}
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	token, err := ds.GetAccessToken()
	if err != nil {
		return nil, err
	}

	password, timestamp := ds.Password(time.Now())

	payload := map[string]interface{}{
		"BusinessShortCode": ds.config.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            utils.WholeUnits(amount),
		"PartyA":            normalized,
		"PartyB":            ds.config.ShortCode,
		"PhoneNumber":       normalized,
		"CallBackURL":       ds.config.CallbackURL,
		"AccountReference":  accountRef,
		"TransactionDesc":   description,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %v", err)
	}

	url := fmt.Sprintf("%s/mpesa/stkpush/v1/processrequest", ds.baseURL())
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ds.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %v", err)
	}

	var pushResp STKPushResponse
	if err := json.Unmarshal(body, &pushResp); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := pushResp.ErrorMessage
		if msg == "" {
			msg = string(body)
		}
		return nil, fmt.Errorf("payment provider error: %s", msg)
	}
	if pushResp.ResponseCode != "0" {
		return nil, fmt.Errorf("payment request rejected: %s", pushResp.ResponseDescription)
	}

	utils.InfoLogger.Printf("STK push accepted: checkout_request_id=%s", pushResp.CheckoutRequestID)

	return &pushResp, nil
}

// STKQueryResponse is the provider's answer to a push-status query.
type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// errCodeStillProcessing is returned by the provider while the payer has not
// yet acted on the push prompt.
const errCodeStillProcessing = "500.001.1001"

// QuerySTKStatus asks the provider for the outcome of an earlier push request
// and maps it onto our payment statuses (pending, success, failed).
func (ds *DarajaService) QuerySTKStatus(checkoutRequestID string) (string, error) {
	token, err := ds.GetAccessToken()
	if err != nil {
		return "", err
	}

	password, timestamp := ds.Password(time.Now())
	payload := map[string]interface{}{
		"BusinessShortCode": ds.config.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %v", err)
	}

	url := fmt.Sprintf("%s/mpesa/stkpushquery/v1/query", ds.baseURL())
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ds.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %v", err)
	}

	var queryResp STKQueryResponse
	if err := json.Unmarshal(body, &queryResp); err != nil {
		return "", fmt.Errorf("error unmarshaling response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		if queryResp.ErrorCode == errCodeStillProcessing {
			return "pending", nil
		}
		msg := queryResp.ErrorMessage
		if msg == "" {
			msg = string(body)
		}
		return "", fmt.Errorf("payment provider error: %s", msg)
	}

	if queryResp.ResultCode == "0" {
		return "success", nil
	}
	return "failed", nil
}

// STKCallback is the asynchronous result the provider posts to our callback
// endpoint. ResultCode 0 means the payer authorized the charge.
type STKCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ReceiptNumber extracts the provider receipt from the callback metadata, if
// present.
func (cb *STKCallback) ReceiptNumber() string {
	for _, item := range cb.Body.StkCallback.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if s, ok := item.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

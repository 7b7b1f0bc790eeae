package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"harambee/config"
	"harambee/models"
	"harambee/utils"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	mpesaTokenPath = "/oauth/v1/generate"
	mpesaPushPath  = "/mpesa/stkpush/v1/processrequest"
	mpesaQueryPath = "/mpesa/stkpushquery/v1/query"

	// Returned by the query endpoint while the payer has not answered the prompt.
	mpesaStillProcessing = "500.001.1001"

	maxAccountReference = 12
	maxTransactionDesc  = 13
)

var eastAfrica = time.FixedZone("EAT", 3*60*60)

// MpesaConfig holds the Daraja credentials and endpoints.
type MpesaConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	Shortcode       string
	Passkey         string
	CallbackURL     string
	TransactionType string
	Timeout         time.Duration
}

func MpesaConfigFromApp() MpesaConfig {
	c := config.AppConfig
	return MpesaConfig{
		BaseURL:         c.MpesaBaseURL,
		ConsumerKey:     c.MpesaConsumerKey,
		ConsumerSecret:  c.MpesaConsumerSecret,
		Shortcode:       c.MpesaShortcode,
		Passkey:         c.MpesaPasskey,
		CallbackURL:     c.MpesaCallbackURL,
		TransactionType: c.MpesaTransactionType,
		Timeout:         15 * time.Second,
	}
}

// --- Daraja wire types ---

type oauthResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

type darajaError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode        string      `json:"ResponseCode"`
	ResponseDescription string      `json:"ResponseDescription"`
	MerchantRequestID   string      `json:"MerchantRequestID"`
	CheckoutRequestID   string      `json:"CheckoutRequestID"`
	ResultCode          json.Number `json:"ResultCode"`
	ResultDesc          string      `json:"ResultDesc"`
}

// MpesaClient talks to the Safaricom Daraja STK push API.
type MpesaClient struct {
	http    *resty.Client
	cfg     MpesaConfig
	results ResultSource
	logger  *zap.Logger
	now     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewMpesaClient builds the client. results may be nil, in which case status always comes from the query endpoint.
func NewMpesaClient(cfg MpesaConfig, results ResultSource, logger *zap.Logger) *MpesaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeader("Content-Type", "application/json")

	return &MpesaClient{
		http:    httpClient,
		cfg:     cfg,
		results: results,
		logger:  logger,
		now:     time.Now,
	}
}

// --- Auth ---

func (m *MpesaClient) accessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.tokenExpiry) {
		return m.token, nil
	}

	var out oauthResponse
	resp, err := m.http.R().
		SetContext(ctx).
		SetBasicAuth(m.cfg.ConsumerKey, m.cfg.ConsumerSecret).
		SetQueryParam("grant_type", "client_credentials").
		SetResult(&out).
		Get(mpesaTokenPath)
	if err != nil {
		return "", fmt.Errorf("mpesa: token request: %w", err)
	}
	if resp.IsError() || out.AccessToken == "" {
		return "", fmt.Errorf("mpesa: token request returned %d", resp.StatusCode())
	}

	ttl, convErr := out.ExpiresIn.Int64()
	if convErr != nil || ttl <= 0 {
		ttl = 3599
	}
	// Expire the cached token a minute before the gateway does.
	m.token = out.AccessToken
	m.tokenExpiry = m.now().Add(time.Duration(ttl)*time.Second - time.Minute)
	return m.token, nil
}

func (m *MpesaClient) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(m.cfg.Shortcode + m.cfg.Passkey + timestamp))
}

func (m *MpesaClient) timestamp() string {
	return m.now().In(eastAfrica).Format("20060102150405")
}

// --- GatewayClient ---

func (m *MpesaClient) Initiate(ctx context.Context, req models.InitiateRequest) (*models.SessionHandle, error) {
	token, err := m.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := m.timestamp()
	body := stkPushRequest{
		BusinessShortCode: m.cfg.Shortcode,
		Password:          m.password(ts),
		Timestamp:         ts,
		TransactionType:   m.cfg.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            m.cfg.Shortcode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       m.cfg.CallbackURL,
		AccountReference:  truncate(req.AccountReference, maxAccountReference),
		TransactionDesc:   truncate(req.Description, maxTransactionDesc),
	}

	var out stkPushResponse
	var apiErr darajaError
	resp, err := m.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post(mpesaPushPath)
	if err != nil {
		return nil, fmt.Errorf("mpesa: stk push: %w", err)
	}

	if resp.IsError() {
		if resp.StatusCode() >= 500 {
			return nil, fmt.Errorf("mpesa: stk push returned %d: %s", resp.StatusCode(), apiErr.ErrorMessage)
		}
		m.logger.Warn("STK push rejected",
			zap.String("code", apiErr.ErrorCode),
			zap.String("message", apiErr.ErrorMessage),
			zap.String("phone", utils.MaskPhone(req.PhoneNumber)))
		return nil, NewInitiationError(apiErr.ErrorCode, apiErr.ErrorMessage)
	}
	if out.ResponseCode != "0" {
		return nil, NewInitiationError(out.ResponseCode, out.ResponseDescription)
	}
	if out.CheckoutRequestID == "" {
		return nil, errors.New("mpesa: stk push accepted without a checkout request id")
	}

	return &models.SessionHandle{
		CheckoutRequestID: out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		Amount:            req.Amount,
		PhoneNumber:       req.PhoneNumber,
		CustomerMessage:   out.CustomerMessage,
	}, nil
}

// CheckStatus asks the query API for the outcome. The callback route is public, so a stored
// callback result never decides the status. It only supplies the receipt number of a charge the
// query confirmed.
func (m *MpesaClient) CheckStatus(ctx context.Context, checkoutRequestID string) (*models.PaymentSession, error) {
	snap, err := m.query(ctx, checkoutRequestID)
	if err != nil || snap.Status != models.PaymentCompleted || m.results == nil {
		return snap, err
	}

	result, err := m.results.GetResult(ctx, checkoutRequestID)
	if err != nil {
		m.logger.Warn("callback result lookup failed", zap.String("checkoutRequestId", checkoutRequestID), zap.Error(err))
		return snap, nil
	}
	if result != nil && result.ResultCode == models.ResultCodeSuccess {
		snap.MpesaReceiptNumber = result.MpesaReceiptNumber
	}
	return snap, nil
}

func (m *MpesaClient) query(ctx context.Context, checkoutRequestID string) (*models.PaymentSession, error) {
	token, err := m.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := m.timestamp()
	var out stkQueryResponse
	var apiErr darajaError
	resp, err := m.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(stkQueryRequest{
			BusinessShortCode: m.cfg.Shortcode,
			Password:          m.password(ts),
			Timestamp:         ts,
			CheckoutRequestID: checkoutRequestID,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post(mpesaQueryPath)
	if err != nil {
		return nil, fmt.Errorf("mpesa: stk query: %w", err)
	}

	if resp.IsError() {
		if apiErr.ErrorCode == mpesaStillProcessing {
			return pendingSnapshot(checkoutRequestID), nil
		}
		return nil, fmt.Errorf("mpesa: stk query returned %d: %s %s", resp.StatusCode(), apiErr.ErrorCode, apiErr.ErrorMessage)
	}
	if out.ResultCode == "" {
		return pendingSnapshot(checkoutRequestID), nil
	}

	code, err := strconv.Atoi(out.ResultCode.String())
	if err != nil {
		return nil, fmt.Errorf("mpesa: stk query: bad result code %q", out.ResultCode)
	}
	snap := models.GatewayResult{
		CheckoutRequestID: checkoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		ResultCode:        code,
		ResultDesc:        out.ResultDesc,
	}.Snapshot()
	return &snap, nil
}

func pendingSnapshot(checkoutRequestID string) *models.PaymentSession {
	return &models.PaymentSession{
		ID:                checkoutRequestID,
		CheckoutRequestID: checkoutRequestID,
		Status:            models.PaymentPending,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

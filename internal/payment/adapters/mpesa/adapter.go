package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plantmetrics/plant/internal/observability/tracing"
	"github.com/plantmetrics/plant/internal/payment/domain"
)

const (
	providerName    = "mpesa"
	timestampLayout = "20060102150405"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Provider() string { return providerName }

func (f *Factory) NewAdapter(config domain.AdapterConfig) (domain.PaymentAdapter, error) {
	if config.ShortCode == "" || config.Passkey == "" {
		return nil, fmt.Errorf("mpesa: short code and passkey are required")
	}
	base := strings.TrimRight(config.BaseURL, "/")
	if base == "" {
		base = "https://api.safaricom.co.ke"
	}
	return &Adapter{
		config: config,
		base:   base,
		client: tracing.WrapHTTPClient(&http.Client{Timeout: 15 * time.Second}),
	}, nil
}

// Adapter speaks the Daraja STK push API.
type Adapter struct {
	config domain.AdapterConfig
	base   string
	client *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
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
}

func (a *Adapter) Initiate(ctx context.Context, req domain.InitiateRequest) (domain.InitiateAck, error) {
	msisdn, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return domain.InitiateAck{}, err
	}

	token, err := a.token(ctx)
	if err != nil {
		return domain.InitiateAck{}, err
	}

	now := time.Now().UTC()
	timestamp := now.Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString(
		[]byte(a.config.ShortCode + a.config.Passkey + timestamp),
	)

	// The provider bills in whole shillings. Fractional cents round up so
	// the charge never falls short of the invoiced amount.
	amount := decimal.NewFromInt(req.AmountCents).
		Div(decimal.NewFromInt(100)).
		Ceil().
		IntPart()

	body := stkPushRequest{
		BusinessShortCode: a.config.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            msisdn,
		PartyB:            a.config.ShortCode,
		PhoneNumber:       msisdn,
		CallBackURL:       a.config.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   truncate(req.Description, 13),
	}

	var resp stkPushResponse
	if err := a.post(ctx, "/mpesa/stkpush/v1/processrequest", token, body, &resp); err != nil {
		return domain.InitiateAck{}, err
	}
	if resp.ResponseCode != "0" || resp.CheckoutRequestID == "" {
		return domain.InitiateAck{}, fmt.Errorf("%w: %s", domain.ErrInitiateDeclined, resp.ResponseDescription)
	}
	return domain.InitiateAck{CheckoutToken: resp.CheckoutRequestID}, nil
}

type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func (a *Adapter) ParseCallback(_ context.Context, payload []byte) (*domain.CallbackEvent, error) {
	var envelope callbackEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, domain.ErrInvalidPayload
	}

	event := domain.CallbackEvent{
		CheckoutToken: cb.CheckoutRequestID,
		ResultCode:    cb.ResultCode,
		ResultDesc:    cb.ResultDesc,
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if amount, err := decimal.NewFromString(string(item.Value)); err == nil {
				event.AmountCents = amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
			}
		case "MpesaReceiptNumber":
			_ = json.Unmarshal(item.Value, &event.ReceiptNumber)
		case "PhoneNumber":
			event.PayerPhone = strings.Trim(string(item.Value), `"`)
		case "TransactionDate":
			raw := strings.Trim(string(item.Value), `"`)
			if ts, err := time.ParseInLocation(timestampLayout, raw, time.UTC); err == nil {
				event.TransactionAt = &ts
			}
		}
	}
	return &event, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (a *Adapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != "" && time.Now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.base+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(a.config.ConsumerKey, a.config.ConsumerSecret)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa: token request returned %d", resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("mpesa: empty access token")
	}
	a.accessToken = body.AccessToken
	// Daraja tokens last an hour; refresh early.
	a.tokenExpiry = time.Now().Add(50 * time.Minute)
	return a.accessToken, nil
}

func (a *Adapter) post(ctx context.Context, path, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mpesa: stk push returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	return json.Unmarshal(raw, out)
}

// NormalizePhone converts local Kenyan formats to the 2547XXXXXXXX msisdn the
// provider expects.
func NormalizePhone(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if r != '+' && r != ' ' && r != '-' {
			return "", domain.ErrInvalidPhone
		}
	}
	msisdn := digits.String()
	switch {
	case len(msisdn) == 10 && strings.HasPrefix(msisdn, "0"):
		msisdn = "254" + msisdn[1:]
	case len(msisdn) == 9 && !strings.HasPrefix(msisdn, "0"):
		msisdn = "254" + msisdn
	}
	if len(msisdn) != 12 || !strings.HasPrefix(msisdn, "254") {
		return "", domain.ErrInvalidPhone
	}
	return msisdn, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

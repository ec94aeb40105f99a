package cbr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/retail-banking/internal/config"
	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BaseCurrency is the currency every CBR rate is quoted in
const BaseCurrency = "RUB"

// BankMargin is added to the key rate when quoting loans
var BankMargin = decimal.NewFromInt(5)

// CBRClient handles integration with Central Bank of Russia
type CBRClient struct {
	url    string
	client *http.Client
	log    *logrus.Logger

	mu    sync.Mutex
	rates map[string]map[string]decimal.Decimal // date -> currency -> RUB per unit
}

// NewCBRClient initializes a new CBR client
func NewCBRClient(cfg *config.Config, log *logrus.Logger) *CBRClient {
	return &CBRClient{
		url: cfg.CBRURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:   log,
		rates: make(map[string]map[string]decimal.Decimal),
	}
}

// buildKeyRateRequest creates a SOAP request for the key rate over the last 30 days
func buildKeyRateRequest(now time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
		<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
			<soap12:Body>
				<KeyRate xmlns="http://web.cbr.ru/">
					<fromDate>%s</fromDate>
					<ToDate>%s</ToDate>
				</KeyRate>
			</soap12:Body>
		</soap12:Envelope>`, now.AddDate(0, 0, -30).Format("2006-01-02"), now.Format("2006-01-02"))
}

// buildCursRequest creates a SOAP request for the daily exchange rates
func buildCursRequest(date time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
		<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
			<soap12:Body>
				<GetCursOnDate xmlns="http://web.cbr.ru/">
					<On_date>%s</On_date>
				</GetCursOnDate>
			</soap12:Body>
		</soap12:Envelope>`, date.Format("2006-01-02"))
}

// sendRequest sends SOAP request to CBR
func (c *CBRClient) sendRequest(ctx context.Context, action, soapRequest string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(soapRequest))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/"+action)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("CBR %s XML response: %s", action, string(body))
	return body, nil
}

// parseKeyRate extracts the latest key rate from a KeyRate response
func parseKeyRate(rawBody []byte) (decimal.Decimal, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse XML: %w", err)
	}

	krElements := doc.FindElements("//diffgram/KeyRate/KR")
	if len(krElements) == 0 {
		return decimal.Zero, fmt.Errorf("no key rate data found in XML")
	}

	// The latest key rate comes first
	rateElement := krElements[0].FindElement("./Rate")
	if rateElement == nil {
		return decimal.Zero, fmt.Errorf("rate element not found in XML")
	}

	rate, err := decimal.NewFromString(strings.TrimSpace(rateElement.Text()))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse rate: %w", err)
	}
	return rate, nil
}

// parseCurs extracts RUB per unit for every currency of a GetCursOnDate response
func parseCurs(rawBody []byte) (map[string]decimal.Decimal, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	elements := doc.FindElements("//ValuteData/ValuteCursOnDate")
	if len(elements) == 0 {
		return nil, fmt.Errorf("no exchange rate data found in XML")
	}

	rates := make(map[string]decimal.Decimal, len(elements)+1)
	rates[BaseCurrency] = decimal.NewFromInt(1)
	for _, el := range elements {
		code := el.FindElement("./VchCode")
		curs := el.FindElement("./Vcurs")
		nom := el.FindElement("./Vnom")
		if code == nil || curs == nil || nom == nil {
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(curs.Text()))
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate of %s: %w", code.Text(), err)
		}
		units, err := decimal.NewFromString(strings.TrimSpace(nom.Text()))
		if err != nil || !units.IsPositive() {
			return nil, fmt.Errorf("invalid nominal of %s: %q", code.Text(), nom.Text())
		}
		rates[strings.ToUpper(strings.TrimSpace(code.Text()))] = value.Div(units)
	}
	return rates, nil
}

// GetKeyRate retrieves the current key rate from CBR and adds bank margin
func (c *CBRClient) GetKeyRate(ctx context.Context) (decimal.Decimal, error) {
	body, err := c.sendRequest(ctx, "KeyRate", buildKeyRateRequest(time.Now()))
	if err != nil {
		return decimal.Zero, err
	}

	rate, err := parseKeyRate(body)
	if err != nil {
		return decimal.Zero, err
	}
	rate = rate.Add(BankMargin)

	c.log.Infof("Retrieved key rate: %s%% (including %s%% bank margin)", rate, BankMargin)
	return rate, nil
}

// GetCursOnDate returns RUB per unit of every quoted currency on date. Results are cached per day.
func (c *CBRClient) GetCursOnDate(ctx context.Context, date time.Time) (map[string]decimal.Decimal, error) {
	day := date.Format("2006-01-02")

	c.mu.Lock()
	cached, ok := c.rates[day]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	body, err := c.sendRequest(ctx, "GetCursOnDate", buildCursRequest(date))
	if err != nil {
		return nil, err
	}
	rates, err := parseCurs(body)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.rates[day] = rates
	c.mu.Unlock()
	c.log.Infof("Retrieved %d exchange rates for %s", len(rates), day)
	return rates, nil
}

// Convert expresses amount in currency to using the rates published for date
func (c *CBRClient) Convert(ctx context.Context, amount models.Money, to string, date time.Time) (models.Money, error) {
	if amount.Currency == to {
		return amount, nil
	}
	rates, err := c.GetCursOnDate(ctx, date)
	if err != nil {
		return models.Money{}, fmt.Errorf("failed to get exchange rates: %w", err)
	}
	from, ok := rates[amount.Currency]
	if !ok {
		return models.Money{}, fmt.Errorf("%w: no rate for %s", models.ErrCurrencyMismatch, amount.Currency)
	}
	target, ok := rates[to]
	if !ok {
		return models.Money{}, fmt.Errorf("%w: no rate for %s", models.ErrCurrencyMismatch, to)
	}
	value := amount.Value.Mul(from).DivRound(target, 2)
	return models.NewMoney(value, to), nil
}

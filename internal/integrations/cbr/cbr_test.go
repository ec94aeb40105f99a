package cbr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dan9191/retail-banking/internal/config"
	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const keyRateResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <KeyRateResponse xmlns="http://web.cbr.ru/">
      <KeyRateResult>
        <diffgr:diffgram xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1">
          <KeyRate xmlns="">
            <KR><DT>2026-10-17T00:00:00+03:00</DT><Rate>16.50</Rate></KR>
            <KR><DT>2026-10-16T00:00:00+03:00</DT><Rate>17.00</Rate></KR>
          </KeyRate>
        </diffgr:diffgram>
      </KeyRateResult>
    </KeyRateResponse>
  </soap:Body>
</soap:Envelope>`

const cursResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <GetCursOnDateResponse xmlns="http://web.cbr.ru/">
      <GetCursOnDateResult>
        <diffgr:diffgram xmlns:diffgr="urn:schemas-microsoft-com:xml-diffgram-v1">
          <ValuteData xmlns="">
            <ValuteCursOnDate><Vname>US Dollar</Vname><Vnom>1</Vnom><Vcurs>80.0000</Vcurs><Vcode>840</Vcode><VchCode>USD</VchCode></ValuteCursOnDate>
            <ValuteCursOnDate><Vname>Euro</Vname><Vnom>1</Vnom><Vcurs>100.0000</Vcurs><Vcode>978</Vcode><VchCode>EUR</VchCode></ValuteCursOnDate>
            <ValuteCursOnDate><Vname>Yen</Vname><Vnom>100</Vnom><Vcurs>55.0000</Vcurs><Vcode>392</Vcode><VchCode>JPY</VchCode></ValuteCursOnDate>
          </ValuteData>
        </diffgr:diffgram>
      </GetCursOnDateResult>
    </GetCursOnDateResponse>
  </soap:Body>
</soap:Envelope>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *CBRClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewCBRClient(&config.Config{CBRURL: srv.URL}, logger)
}

func TestGetKeyRate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("SOAPAction") != "http://web.cbr.ru/KeyRate" {
			t.Errorf("unexpected SOAPAction %q", r.Header.Get("SOAPAction"))
		}
		io.WriteString(w, keyRateResponse)
	})

	rate, err := client.GetKeyRate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("21.5")) {
		t.Errorf("expected latest rate plus margin 21.5, got %s", rate)
	}
}

func TestGetKeyRate_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := client.GetKeyRate(context.Background()); err == nil {
		t.Error("expected error for bad status")
	}
}

func TestConvert(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "<On_date>2026-10-01</On_date>") {
			t.Errorf("expected requested date in body, got %s", body)
		}
		io.WriteString(w, cursResponse)
	})
	ctx := context.Background()
	date := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		amount   models.Money
		to       string
		expected string
	}{
		{"to base", models.NewMoney(decimal.NewFromInt(10), "USD"), "RUB", "800"},
		{"from base", models.NewMoney(decimal.NewFromInt(1000), "RUB"), "EUR", "10"},
		{"cross rate", models.NewMoney(decimal.NewFromInt(100), "EUR"), "USD", "125"},
		{"nominal", models.NewMoney(decimal.NewFromInt(1000), "JPY"), "RUB", "550"},
		{"same currency", models.NewMoney(decimal.NewFromInt(7), "USD"), "USD", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.Convert(ctx, tt.amount, tt.to, date)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Currency != tt.to || !got.Value.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("expected %s %s, got %s", tt.expected, tt.to, got)
			}
		})
	}

	if calls.Load() != 1 {
		t.Errorf("expected rates to be fetched once per day, got %d calls", calls.Load())
	}

	_, err := client.Convert(ctx, models.NewMoney(decimal.NewFromInt(1), "XYZ"), "RUB", date)
	if !errors.Is(err, models.ErrCurrencyMismatch) {
		t.Errorf("expected currency mismatch for unknown currency, got %v", err)
	}
}
